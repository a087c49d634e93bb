package handler

import (
	"os"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var routerAnnotation = regexp.MustCompile(`@Router\s+(\S+)\s+\[(\w+)\]`)

func documentedRoutes(t *testing.T, files ...string) []string {
	t.Helper()
	var routes []string
	for _, f := range files {
		src, err := os.ReadFile(f)
		require.NoError(t, err)
		for _, m := range routerAnnotation.FindAllStringSubmatch(string(src), -1) {
			routes = append(routes, strings.ToUpper(m[2])+" "+m[1])
		}
	}
	sort.Strings(routes)
	return routes
}

func TestRouterAnnotationsMatchRegisteredRoutes(t *testing.T) {
	tc, _ := newNumberingServer(t, nil)
	NewHealthHandler(nil).RegisterRoutes(tc.Engine)

	var registered []string
	for _, r := range tc.Engine.Routes() {
		registered = append(registered, r.Method+" "+r.Path)
	}
	sort.Strings(registered)

	assert.Equal(t, registered, documentedRoutes(t, "numbering.go", "health.go"))
}
