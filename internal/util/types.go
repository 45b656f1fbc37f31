package util

import (
	"strings"

	"github.com/modern-go/reflect2"
)

// NameOfType returns a short name of the type of v, without package path,
// pointer marks or type parameters. (e.g. *operator.Mapper[int,int,int] -> Mapper)
func NameOfType(v interface{}) string {
	name := reflect2.TypeOf(v).Type1().String()
	name = strings.TrimLeft(name, "*")
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
