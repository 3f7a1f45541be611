/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomoncle/lattice/query"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Where   []string
	OrWhere []string
	With    []string
	Sort    []string
	Group   []string
	Select  []string
	Skip    int
	Take    int
}

// CompileResult is the printable form of a compiled builder.
type CompileResult struct {
	Filter   string   `json:"filter"`
	Includes []string `json:"includes,omitempty"`
	Orders   []string `json:"orders,omitempty"`
	Group    []string `json:"group,omitempty"`
	Select   []string `json:"select,omitempty"`
	Offset   int      `json:"offset,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

func (r CompileResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "filter:   %s", r.Filter)
	for _, inc := range r.Includes {
		fmt.Fprintf(&b, "\ninclude:  %s", inc)
	}
	if len(r.Orders) > 0 {
		fmt.Fprintf(&b, "\norder:    %s", strings.Join(r.Orders, ", "))
	}
	if len(r.Group) > 0 {
		fmt.Fprintf(&b, "\ngroup:    %s", strings.Join(r.Group, ", "))
	}
	if len(r.Select) > 0 {
		fmt.Fprintf(&b, "\nselect:   %s", strings.Join(r.Select, ", "))
	}
	if r.Offset > 0 || r.Limit > 0 {
		fmt.Fprintf(&b, "\nwindow:   offset=%d limit=%d", r.Offset, r.Limit)
	}
	return b.String()
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile query flags into a filter tree",
		Long: `Compile builder conditions given as flags and print the resulting
filter tree, include specs and query shape.

Conditions are "column=value" or "column:operator:value", for example
"kind=post" or "views:>=:10". The in and notin operators take a comma
separated value list. Includes are "Target,token,..." where tokens are
include modifiers such as "as:p", "attributes:id:title" or "include:Comments".
Sort fields take a leading "-" for descending order.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "AND condition (repeatable)")
	cmd.Flags().StringArrayVar(&opts.OrWhere, "or", nil, "OR condition (repeatable)")
	cmd.Flags().StringArrayVar(&opts.With, "with", nil, "include spec (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Sort, "sort", nil, "sort fields")
	cmd.Flags().StringSliceVar(&opts.Group, "group", nil, "group by columns")
	cmd.Flags().StringSliceVar(&opts.Select, "select", nil, "selected columns")
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "rows to skip")
	cmd.Flags().IntVar(&opts.Take, "take", 0, "row limit, 0 for none")

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	b, err := BuildQuery(opts)
	if err != nil {
		_ = formatter.Error(CodeInvalidQuery, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid query", err)
	}
	formatter.VerboseLog("compiled %d condition(s), %d include(s)", len(b.Conditions()), len(b.Includes()))
	return formatter.Success(Summarize(b))
}

// BuildQuery fills a builder from compile flags. Builder argument errors are
// returned as well as malformed flag values.
func BuildQuery(opts *CompileOptions) (*query.Builder, error) {
	b := query.NewBuilder()
	for _, raw := range opts.Where {
		args, err := parseCondition(raw)
		if err != nil {
			return nil, err
		}
		b.Where(args...)
	}
	for _, raw := range opts.OrWhere {
		args, err := parseCondition(raw)
		if err != nil {
			return nil, err
		}
		b.OrWhere(args...)
	}
	for _, raw := range opts.With {
		b.WithList(strings.Split(raw, ","))
	}
	for _, field := range opts.Sort {
		relation, name, direction := parseSort(field)
		b.OrderByRelation(relation, name, direction)
	}
	if len(opts.Group) > 0 {
		b.GroupBy(opts.Group...)
	}
	if len(opts.Select) > 0 {
		b.Select(opts.Select...)
	}
	b.Skip(opts.Skip).Take(opts.Take)
	if err := b.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

// Summarize compiles b into a CompileResult.
func Summarize(b *query.Builder) CompileResult {
	out := CompileResult{
		Filter: b.Compile().String(),
		Group:  b.Group(),
		Select: b.Attributes(),
		Offset: b.Offset(),
		Limit:  b.Limit(),
	}
	for _, inc := range b.Includes() {
		out.Includes = append(out.Includes, inc.String())
	}
	for _, o := range b.Orders() {
		field := o.Field
		if o.Relation != "" {
			field = o.Relation + "." + field
		}
		out.Orders = append(out.Orders, field+" "+o.Direction)
	}
	return out
}

func parseCondition(raw string) ([]interface{}, error) {
	if parts := strings.SplitN(raw, ":", 3); len(parts) == 3 {
		op, err := query.ParseOperator(parts[1])
		if err != nil {
			return nil, err
		}
		var value interface{} = parts[2]
		if op == query.OpIn || op == query.OpNotIn {
			value = strings.Split(parts[2], ",")
		}
		return []interface{}{parts[0], op, value}, nil
	}
	column, value, ok := strings.Cut(raw, "=")
	if !ok || column == "" {
		return nil, fmt.Errorf("malformed condition %q: expected column=value or column:operator:value", raw)
	}
	return []interface{}{column, value}, nil
}

func parseSort(field string) (relation, name, direction string) {
	direction = query.Asc
	switch {
	case strings.HasPrefix(field, "-"):
		direction = query.Desc
		field = field[1:]
	case strings.HasPrefix(field, "+"):
		field = field[1:]
	}
	if i := strings.LastIndex(field, "."); i > 0 {
		return field[:i], field[i+1:], direction
	}
	return "", field, direction
}
