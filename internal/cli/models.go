package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/objgate/internal/model"
)

// ModelSummary describes one object type for the models command.
type ModelSummary struct {
	Type   string        `json:"type"`
	Fields []model.Field `json:"fields"`
}

// ModelList is the models command result.
type ModelList []ModelSummary

// String renders one line per type.
func (l ModelList) String() string {
	var b strings.Builder
	writeModels(&b, l)
	return strings.TrimSuffix(b.String(), "\n")
}

func writeModels(w io.Writer, l ModelList) {
	for _, m := range l {
		parts := make([]string, len(m.Fields))
		for i, f := range m.Fields {
			parts[i] = f.Name + ":" + f.Kind
		}
		fmt.Fprintf(w, "%s  %s\n", m.Type, strings.Join(parts, " "))
	}
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the object types defined by the configured CUE models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, _, err := rootOpts.open(cmd)
			if err != nil {
				return f.Fail(err)
			}
			defer a.Close()

			list := ModelList{}
			for _, typ := range a.Models.Types() {
				m, _ := a.Models.Model(typ)
				list = append(list, ModelSummary{Type: typ, Fields: m.Fields})
			}
			return f.Success(list)
		},
	}
	return cmd
}
