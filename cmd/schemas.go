// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pilosa/geoquery"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// SchemasMain holds the configuration of the schemas command.
type SchemasMain struct {
	Store  storeFlags
	Remove string

	stdout io.Writer
}

// Run lists the feature types in the table, one "name: spec" line each,
// after removing the Remove type if set.
func (m *SchemasMain) Run(ctx context.Context) (err error) {
	ds, err := geoquery.OpenDataStore(m.Store.Params)
	if err != nil {
		return errors.Wrap(err, "opening data store")
	}
	defer func() {
		if cerr := ds.Close(); err == nil {
			err = errors.Wrap(cerr, "closing data store")
		}
	}()
	if m.Remove != "" {
		if err := ds.RemoveSchema(ctx, m.Remove); err != nil {
			return errors.Wrap(err, "removing schema")
		}
		fmt.Fprintf(m.stdout, "removed %s\n", m.Remove)
	}
	names, err := ds.TypeNames(ctx)
	if err != nil {
		return errors.Wrap(err, "listing feature types")
	}
	for _, name := range names {
		ft, err := ds.GetSchema(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "getting schema %s", name)
		}
		line := name + ": " + ft.Spec()
		if st := ft.StartTime(); st != "" {
			line += " (start time " + st + ")"
		}
		fmt.Fprintln(m.stdout, line)
	}
	return nil
}

// NewSchemasCommand returns a new cobra command which lists and removes
// feature types.
func NewSchemasCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := &SchemasMain{stdout: stdout}
	schemasCommand := &cobra.Command{
		Use:   "schemas",
		Short: "schemas - list or remove the feature types in a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return m.Run(context.Background())
		},
	}
	flags := schemasCommand.Flags()
	m.Store.register(flags)
	flags.StringVar(&m.Remove, "remove", "", "Feature type to remove, with all its features.")
	return schemasCommand
}

func init() {
	subcommandFns["schemas"] = NewSchemasCommand
}
