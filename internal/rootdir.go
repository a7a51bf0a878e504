package internal

import "strings"

// NewZipRootDirFinder returns a function that is fed entry names one at a time to compute their common root directory.
//
// ZIP paths are relative and use `/` as separator (`\` shows up in archives from pre-standard Windows tools), so given
//
//	test/a.txt
//	test/path/b.txt
//	test/another/path/c.txt
//
// the common root is "test". The function returns the root seen so far and whether one still exists; as soon as it
// returns false (a file at top level, or two entries disagreeing on their first component), subsequent calls keep
// returning `"", false` and the caller can stop feeding names.
func NewZipRootDirFinder() func(name string) (rootDir string, hasRoot bool) {
	noRoot, root := false, ""

	return func(name string) (string, bool) {
		if noRoot {
			return "", false
		}

		i := strings.IndexAny(name, `/\`)
		if i < 0 {
			// a file at top level rules out any root.
			noRoot = true
			return "", false
		}

		switch head := name[:i]; {
		case root == "":
			root = head
		case root != head:
			noRoot = true
			return "", false
		}

		return root, true
	}
}
