package comicbot

import (
	"fmt"
	"strings"
)

// Wrapper text that leaks when a structured response is stringified
// instead of decoded.
const (
	wrapperPrefix = "[TextBlock(text='"
	wrapperSuffix = "', type='text')]"
)

var wrapperReplacer = strings.NewReplacer(
	wrapperPrefix, "",
	wrapperSuffix, "",
	`\n`, "\n",
)

// Normalize turns raw model output into plain text. Typed responses are
// decoded directly; anything else is stringified. It never fails.
func Normalize(raw any) string {
	return clean(rawText(raw))
}

func rawText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case Content:
		return v.Text()
	case []ContentBlock:
		return Content(v).Text()
	case ContentBlock:
		return v.Text
	case *ContentBlock:
		if v == nil {
			return ""
		}
		return v.Text
	case []string:
		return strings.Join(v, "\n")
	case fmt.Stringer:
		return safeString(v)
	default:
		return fmt.Sprint(v)
	}
}

// safeString guards against Stringer implementations that panic on nil
// receivers.
func safeString(s fmt.Stringer) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
		}
	}()
	return s.String()
}

func clean(s string) string {
	return strings.TrimSpace(wrapperReplacer.Replace(s))
}
