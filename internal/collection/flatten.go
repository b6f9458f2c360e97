package collection

import (
	"fmt"

	"github.com/google/uuid"
)

// RequestDescriptor is one flattened, dispatch-ready request definition.
// IDs are unique within a run; FolderPath records the folder names from the
// collection root down to the request's parent.
type RequestDescriptor struct {
	ID         string
	Name       string
	Method     string
	URL        string
	Headers    []Header
	Body       *Body
	FolderPath []string
}

// WarnFunc receives non-fatal diagnostics from the flattening walk.
type WarnFunc func(format string, args ...interface{})

type stackFrame struct {
	item  Item
	path  []string
	depth int
}

// Flatten walks the collection tree in pre-order and returns the requests in
// document order. The walk is iterative with an explicit stack; nesting
// deeper than MaxDepth fails with ErrStructure. A node carrying both a child
// item list and a request field is treated as a folder and reported through
// warn.
func Flatten(coll *Collection, warn WarnFunc) ([]RequestDescriptor, error) {
	if warn == nil {
		warn = func(string, ...interface{}) {}
	}

	var descriptors []RequestDescriptor
	var stack []stackFrame

	for i := len(coll.Item) - 1; i >= 0; i-- {
		stack = append(stack, stackFrame{item: coll.Item[i], depth: 1})
	}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if frame.depth > MaxDepth {
			return nil, fmt.Errorf("%w: folder nesting exceeds depth %d at %q",
				ErrStructure, MaxDepth, frame.item.Name)
		}

		if len(frame.item.Item) > 0 {
			if frame.item.Request != nil {
				warn("node %q has both sub-items and a request; treating as folder",
					frame.item.Name)
			}
			childPath := appendPath(frame.path, frame.item.Name)
			for i := len(frame.item.Item) - 1; i >= 0; i-- {
				stack = append(stack, stackFrame{
					item:  frame.item.Item[i],
					path:  childPath,
					depth: frame.depth + 1,
				})
			}
			continue
		}

		if frame.item.Request == nil {
			// Empty folders and response-only items carry no request.
			continue
		}

		descriptors = append(descriptors, newDescriptor(frame.item, frame.path))
	}

	return descriptors, nil
}

func newDescriptor(item Item, path []string) RequestDescriptor {
	req := item.Request

	method := "GET"
	if req.Method != "" {
		method = req.Method
	}

	var headers []Header
	for _, h := range req.Header {
		if !h.Disabled {
			headers = append(headers, h)
		}
	}

	return RequestDescriptor{
		ID:         uuid.New().String(),
		Name:       item.Name,
		Method:     method,
		URL:        URLString(req.URL),
		Headers:    headers,
		Body:       req.Body,
		FolderPath: path,
	}
}

func appendPath(path []string, name string) []string {
	child := make([]string, len(path), len(path)+1)
	copy(child, path)
	return append(child, name)
}
