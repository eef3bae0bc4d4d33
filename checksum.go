package tablediff

import (
	"crypto/md5"
	"encoding/hex"
)

// md5Hex returns the lower-case hex digest of s. It exists so the sqlite
// scalar functions registered in database.go compute exactly the same
// md5(text) mapping every other backend's built-in MD5 provides in SQL.
func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
