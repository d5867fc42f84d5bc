package app

import (
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"github.com/mandelsoft/vergraph/pkg/patch"
)

// Print writes v in the selected output format. text is used
// for the default format.
func (o *Options) Print(w io.Writer, v interface{}, text func(w io.Writer) error) error {
	switch o.output {
	case "", "text":
		return text(w)
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("invalid output format %q", o.output)
	}
}

func printPatches(w io.Writer, patches []patch.Patch) error {
	for i, p := range patches {
		data, err := patch.Encode(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%3d: %s\n", i, data)
	}
	return nil
}
