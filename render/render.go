package render

import (
    "regexp"
    "sort"
    "strings"

    . "github.com/clustertools/runtimectl/errors"
)

// Templates use {%name%} markers. Substitution is literal: values are not
// escaped, and a value that itself contains marker syntax will be picked up
// by a later pass. Callers own that risk.
var markerRegexp = regexp.MustCompile(`\{%([a-zA-Z0-9_.-]+)%\}`)

type Bindings map[string]string

func Marker(key string) string {
    return "{%" + key + "%}"
}

// Render substitutes every binding whose marker occurs in the template and
// leaves unmatched markers verbatim so a caller can render in multiple
// passes. The input template is never modified.
func Render(template string, bindings Bindings) string {
    rendered := template

    for key, value := range bindings {
        rendered = strings.Replace(rendered, Marker(key), value, -1)
    }

    return rendered
}

// RenderStrict is the all-or-nothing variant. If any marker remains unbound
// after substitution it returns EMissingBindingValue and no output.
func RenderStrict(template string, bindings Bindings) (string, error) {
    rendered := Render(template, bindings)

    if markerRegexp.MatchString(rendered) {
        return "", EMissingBindingValue
    }

    return rendered, nil
}

// Markers returns the sorted set of marker names occurring in the template.
func Markers(template string) []string {
    seen := make(map[string]bool)
    names := make([]string, 0)

    for _, match := range markerRegexp.FindAllStringSubmatch(template, -1) {
        if !seen[match[1]] {
            seen[match[1]] = true
            names = append(names, match[1])
        }
    }

    sort.Strings(names)

    return names
}
