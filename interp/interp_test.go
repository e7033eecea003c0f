package interp

import "testing"

func TestInterpolate(t *testing.T) {
	vars := map[string]string{
		"transport_url": "https://sgtm.example.com",
		"id":            "42",
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no placeholders", "plain text", "plain text"},
		{"single", "${transport_url}/_set_cookie", "https://sgtm.example.com/_set_cookie"},
		{"repeated", "${id}-${id}", "42-42"},
		{"multiple", "${transport_url}?id=${id}", "https://sgtm.example.com?id=42"},
		{"unknown left verbatim", "${missing}/x", "${missing}/x"},
		{"mixed known and unknown", "${id}${nope}", "42${nope}"},
		{"unterminated", "${id", "${id"},
		{"empty key not matched", "${}", "${}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interpolate(tt.input, vars); got != tt.want {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestInterpolate_NonRecursive(t *testing.T) {
	vars := map[string]string{
		"a": "${b}",
		"b": "resolved",
	}
	if got := Interpolate("${a}", vars); got != "${b}" {
		t.Errorf("substituted value was rescanned: got %q", got)
	}
}

func TestInterpolate_EmptyValueKeepsPlaceholder(t *testing.T) {
	if got := Interpolate("x${k}y", map[string]string{"k": ""}); got != "x${k}y" {
		t.Errorf("got %q, want %q", got, "x${k}y")
	}
}

func TestInterpolate_NilMapping(t *testing.T) {
	if got := Interpolate("${a}", nil); got != "${a}" {
		t.Errorf("got %q", got)
	}
}

func TestExpand_LookupDecides(t *testing.T) {
	var seen []string
	got := Expand("${a}-${b:-x}-${a}", func(key string) (string, bool) {
		seen = append(seen, key)
		if key == "a" {
			return "", true
		}
		return "", false
	})
	if got != "--${b:-x}-" {
		t.Errorf("Expand() = %q", got)
	}
	if len(seen) != 3 || seen[1] != "b:-x" {
		t.Errorf("lookup keys = %q", seen)
	}
}
