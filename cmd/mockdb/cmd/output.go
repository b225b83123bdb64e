package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/asaidimu/go-mockdb/core/document"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// writeOutput encodes v as indented JSON or as YAML. YAML output keeps the
// field order of the JSON encoding.
func writeOutput(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format != outputYAML {
		_, err = w.Write(append(data, '\n'))
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle drops the flow style the JSON source leaves on every node.
func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode {
		if n.Tag == "!!str" {
			n.Style = 0
		}
		return
	}
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// readInput resolves a command line JSON argument. "-" reads from stdin and
// a leading "@" reads from a file. Comments and trailing commas are allowed.
func readInput(arg string, stdin io.Reader) (document.Value, error) {
	var data []byte
	var err error
	switch {
	case arg == "-":
		data, err = io.ReadAll(stdin)
	case len(arg) > 1 && arg[0] == '@':
		data, err = os.ReadFile(arg[1:])
	default:
		data = []byte(arg)
	}
	if err != nil {
		return document.Null(), err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return document.Null(), errors.New("empty JSON input")
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return document.Null(), fmt.Errorf("invalid JSON: %w", err)
	}
	return document.ParseValue(standardized)
}

// readObject is readInput for arguments that must be a JSON object.
func readObject(arg string, stdin io.Reader) (*document.Document, error) {
	v, err := readInput(arg, stdin)
	if err != nil {
		return nil, err
	}
	d, ok := v.Document()
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", v.Kind())
	}
	return d, nil
}
