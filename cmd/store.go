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
	"github.com/pilosa/geoquery"
	"github.com/spf13/pflag"
)

// storeFlags are the data store parameters shared by the query and schemas
// commands.
type storeFlags struct {
	geoquery.Params
}

func (s *storeFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&s.Backend, "backend", "leveldb", "Storage backend (leveldb, boltdb or badger).")
	flags.StringVar(&s.Path, "path", "geoquery-data", "Directory for the data store.")
	flags.StringVar(&s.Instance, "instance", "local", "Data store instance name.")
	flags.StringVar(&s.Zookeepers, "zookeepers", geoquery.DefaultZookeepers, "Comma separated list of zookeeper host:port pairs.")
	flags.StringVar(&s.User, "user", "root", "Data store user.")
	flags.StringVar(&s.Password, "password", "", "Data store password.")
	flags.StringVar(&s.TableName, "table-name", "geomesa.tutorial", "Table holding the feature types.")
}
