package headers

import (
	"reflect"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	in := []string{
		"User-Agent: Bot",
		"Referer: https://www.naiin.com/",
		"BadHeader",
		": no key",
		"Accept: text/html",
		"Accept: application/xhtml+xml",
	}
	out := ParseHeaders(in)
	expected := map[string]string{
		"User-Agent": "Bot",
		"Referer":    "https://www.naiin.com/",
		"Accept":     "application/xhtml+xml",
	}
	if !reflect.DeepEqual(out, expected) {
		t.Fatalf("unexpected parse result: %#v", out)
	}
}
