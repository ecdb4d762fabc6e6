package rbac

import (
	"bufio"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

// routeCallPattern matches chi route registrations with absolute API paths,
// e.g. r.Get("/api/mentors/{id}", ...). Handlers register absolute paths so
// the scanner and the live router agree on patterns.
var routeCallPattern = regexp.MustCompile(`\.(Get|Post|Put|Patch|Delete)\s*\(\s*"(/api/[^"]*)"`)

// ScanRoutes walks a source tree and collects route registrations without
// running the server. The drift-repair job feeds the result to the
// synchronizer; the live router walk stays the source of truth at startup.
func ScanRoutes(fsys fs.FS) ([]Route, error) {
	seen := make(map[Route]struct{})
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		routes, err := scanFile(fsys, path)
		if err != nil {
			return err
		}
		for _, route := range routes {
			seen[route] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rbac: scan routes: %w", err)
	}

	routes := make([]Route, 0, len(seen))
	for route := range seen {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes, nil
}

func scanFile(fsys fs.FS, path string) ([]Route, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var routes []Route
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		for _, match := range routeCallPattern.FindAllStringSubmatch(line, -1) {
			routes = append(routes, Route{
				Method: strings.ToUpper(match[1]),
				Path:   match[2],
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return routes, nil
}
