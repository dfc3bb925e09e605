package lazyorm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// FinalizeMethod is forwarded untouched even while properties are pending.
const FinalizeMethod = "Finalize"

// DefaultLazyLoadTriggerMethods resolve every pending property before they run.
var DefaultLazyLoadTriggerMethods = []string{"Equal", "Clone", "String"}

func isGetter(method string) bool {
	return hasPropertyPrefix(method, "Get") || hasPropertyPrefix(method, "Is")
}

func isSetter(method string) bool {
	return hasPropertyPrefix(method, "Set")
}

// methodToProperty strips the accessor prefix: "GetRoles" -> "Roles".
func methodToProperty(method string) string {
	for _, prefix := range []string{"Get", "Set", "Is"} {
		if hasPropertyPrefix(method, prefix) {
			return method[len(prefix):]
		}
	}
	return method
}

// hasPropertyPrefix requires the prefix to be followed by an upper-case
// letter, so "Settle" is not a setter.
func hasPropertyPrefix(method, prefix string) bool {
	if len(method) <= len(prefix) || !strings.HasPrefix(method, prefix) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(method[len(prefix):])
	return unicode.IsUpper(r)
}

func propertyKey(property string) string {
	return strings.ToUpper(property)
}
