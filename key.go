package diskcache

// maxKeyLen is the longest key this cache will accept, matching the
// journal line grammar's key bound.
const maxKeyLen = 120

// validKey reports whether key matches [a-z0-9_-]{1,120}.
//
// This is hand-rolled rather than regexp.MustCompile because it runs on
// every public call and the grammar is small enough that a byte scan is
// both faster and, here, no less readable than a compiled pattern.
func validKey(key string) bool {
	if len(key) == 0 || len(key) > maxKeyLen {
		return false
	}

	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}

	return true
}
