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

package gdelt

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/pilosa/geoquery"
	"github.com/pilosa/geoquery/aws/s3"
	"github.com/pilosa/geoquery/csv"
	"github.com/pilosa/geoquery/kafka"
	"github.com/pilosa/geoquery/termstat"
	"github.com/pilosa/pilosa/logger"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Main holds all config for a GDELT ingest.
type Main struct {
	Backend    string `help:"Storage backend (leveldb, boltdb or badger)."`
	Path       string `help:"Directory for the data store. Empty means in memory where the backend supports it."`
	Instance   string `help:"Data store instance name."`
	Zookeepers string `help:"Comma separated list of zookeeper host:port pairs."`
	User       string `help:"Data store user."`
	Password   string `help:"Data store password."`
	TableName  string `help:"Table holding the feature types."`

	FeatureName string   `help:"Name of the GDELT feature type."`
	Source      string   `help:"Where records come from: file, s3, kafka or confluent."`
	Files       []string `help:"Comma separated list of files or http URLs to read."`
	Delimiter   string   `help:"Field delimiter of the input files."`
	HasHeader   bool     `help:"Input files start with a header line. Otherwise the GDELT column order is assumed."`
	S3Bucket    string   `help:"S3 bucket name from which to read objects."`
	S3Prefix    string   `help:"Only objects in the bucket matching this prefix will be used."`
	S3Region    string   `help:"AWS region to use."`
	KafkaHosts  []string `help:"Comma separated list of Kafka brokers."`
	KafkaTopics []string `help:"Kafka topics to consume."`
	KafkaGroup  string   `help:"Kafka consumer group."`
	RegistryURL string   `help:"Confluent schema registry host:port."`
	MaxMsgs     int      `help:"Stop after this many Kafka messages. 0 means never."`

	Concurrency int    `help:"Number of concurrent parsing routines."`
	BatchSize   int    `help:"Number of features to write at once."`
	LogPath     string `help:"Log file to write to. Empty means stderr."`
	Verbose     bool   `help:"Enable verbose logging."`
	Stats       bool   `help:"Print ingest counts to stderr every few seconds."`

	newSource func() (geoquery.Source, error)
	log       logger.Logger
	logFile   *os.File
	stats     geoquery.Statter
	written   int64
	skipped   int64
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		Backend:     "leveldb",
		Instance:    "geoquery",
		Zookeepers:  geoquery.DefaultZookeepers,
		User:        "root",
		TableName:   "gdelt",
		FeatureName: "gdelt",
		Source:      "file",
		Delimiter:   "\t",
		S3Region:    "us-east-1",
		KafkaHosts:  []string{"localhost:9092"},
		KafkaTopics: []string{"gdelt"},
		KafkaGroup:  "geoquery",
		Concurrency: 1,
		BatchSize:   1000,
	}
}

// SetSource replaces the configured source with one built by newSource.
func (m *Main) SetSource(newSource func() (geoquery.Source, error)) {
	m.newSource = newSource
}

// SetStatter sets where ingest counts and batch timings are reported.
func (m *Main) SetStatter(s geoquery.Statter) {
	m.stats = s
}

// Written returns the number of features written by the last Run.
func (m *Main) Written() int64 { return atomic.LoadInt64(&m.written) }

// Skipped returns the number of records the last Run could not parse.
func (m *Main) Skipped() int64 { return atomic.LoadInt64(&m.skipped) }

// Log returns the logger set up by Run.
func (m *Main) Log() logger.Logger { return m.log }

func (m *Main) params() geoquery.Params {
	return geoquery.Params{
		Backend:    m.Backend,
		Path:       m.Path,
		Instance:   m.Instance,
		Zookeepers: m.Zookeepers,
		User:       m.User,
		Password:   m.Password,
		TableName:  m.TableName,
	}
}

// Run reads every record from the configured source, parses it into a GDELT
// feature and writes the features in batches. Records which can't be parsed
// are logged and skipped.
func (m *Main) Run() (err error) {
	start := time.Now()
	atomic.StoreInt64(&m.written, 0)
	atomic.StoreInt64(&m.skipped, 0)
	if err := m.setup(); err != nil {
		return errors.Wrap(err, "setting up")
	}
	if m.logFile != nil {
		defer m.logFile.Close()
	}
	stats := m.stats
	if stats == nil {
		stats = geoquery.NopStatter{}
		if m.Stats {
			c := termstat.NewCollector(os.Stderr, 2*time.Second)
			defer c.Close()
			stats = c
		}
	}

	ds, err := geoquery.OpenDataStore(m.params(), geoquery.OptStoreLogger(m.log))
	if err != nil {
		return errors.Wrap(err, "opening data store")
	}
	defer func() {
		if cerr := ds.Close(); err == nil {
			err = errors.Wrap(cerr, "closing data store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ft, err := BuildFeatureType(m.FeatureName)
	if err != nil {
		return errors.Wrap(err, "building feature type")
	}
	if err := ds.CreateSchema(ctx, ft); err != nil {
		return errors.Wrap(err, "creating schema")
	}
	fs, err := ds.GetFeatureSource(ctx, ft.Name)
	if err != nil {
		return errors.Wrap(err, "getting feature source")
	}

	newSource := m.newSource
	if newSource == nil {
		newSource = m.defaultSource
	}
	src, err := newSource()
	if err != nil {
		return errors.Wrap(err, "getting source")
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	features := make(chan *geoquery.Feature, m.BatchSize)
	eg, ctx := errgroup.WithContext(ctx)
	parser := NewParser(ft)
	parsers := errgroup.Group{}
	for c := 0; c < m.Concurrency; c++ {
		parsers.Go(func() error {
			return m.parse(ctx, src, parser, features, stats)
		})
	}
	eg.Go(func() error {
		defer close(features)
		return parsers.Wait()
	})
	eg.Go(func() error {
		return m.write(ctx, fs, features, stats)
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	m.log.Printf("ingested %d features into %s (%d skipped) in %v", m.Written(), ft.Name, m.Skipped(), time.Since(start))
	return nil
}

func (m *Main) setup() error {
	m.logFile = nil
	if m.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if m.BatchSize < 1 {
		return errors.New("batch size must be at least 1")
	}

	logOut := io.Writer(os.Stderr)
	if m.LogPath != "" {
		f, err := os.OpenFile(m.LogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return errors.Wrap(err, "opening log file")
		}
		m.logFile = f
		logOut = f
	}
	if m.Verbose {
		m.log = logger.NewVerboseLogger(logOut)
	} else {
		m.log = logger.NewStandardLogger(logOut)
	}

	return nil
}

func (m *Main) defaultSource() (geoquery.Source, error) {
	switch m.Source {
	case "file":
		if len(m.Files) == 0 {
			return nil, errors.New("no files to read")
		}
		return csv.NewSource(m.csvOptions(csv.WithURLs(m.Files))...), nil
	case "s3":
		svc, err := s3.NewClient(m.S3Region)
		if err != nil {
			return nil, errors.Wrap(err, "getting s3 client")
		}
		objects, err := s3.Openers(svc, m.S3Bucket, m.S3Prefix)
		if err != nil {
			return nil, errors.Wrap(err, "listing s3 objects")
		}
		return csv.NewSource(m.csvOptions(csv.WithOpenStringers(objects))...), nil
	case "kafka":
		src := kafka.NewSource()
		m.configureKafka(src)
		return src, errors.Wrap(src.Open(), "opening kafka source")
	case "confluent":
		src := kafka.NewConfluentSource()
		m.configureKafka(&src.Source)
		src.RegistryURL = m.RegistryURL
		return src, errors.Wrap(src.Open(), "opening kafka source")
	}
	return nil, errors.Errorf("unknown source '%s'", m.Source)
}

func (m *Main) csvOptions(files csv.Option) []csv.Option {
	opts := []csv.Option{
		files,
		csv.WithDelimiter(m.Delimiter),
		csv.WithConcurrency(m.Concurrency),
		csv.WithLogger(m.log),
	}
	if !m.HasHeader {
		opts = append(opts, csv.WithHeader(Header()))
	}
	return opts
}

func (m *Main) configureKafka(src *kafka.Source) {
	src.Hosts = m.KafkaHosts
	src.Topics = m.KafkaTopics
	src.Group = m.KafkaGroup
	src.MaxMsgs = m.MaxMsgs
	src.Log = m.log
}

func (m *Main) parse(ctx context.Context, src geoquery.Source, p *Parser, out chan<- *geoquery.Feature, stats geoquery.Statter) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := src.Record()
		if err == io.EOF {
			return nil
		} else if err != nil {
			m.log.Printf("reading record: %v", err)
			atomic.AddInt64(&m.skipped, 1)
			stats.Count("gdelt.skipped", 1, 1)
			continue
		}
		f, err := p.Parse(rec)
		if err != nil {
			m.log.Printf("couldn't parse record %v, err: %v", rec, err)
			atomic.AddInt64(&m.skipped, 1)
			stats.Count("gdelt.skipped", 1, 1)
			continue
		}
		select {
		case out <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Main) write(ctx context.Context, fs geoquery.FeatureStore, in <-chan *geoquery.Feature, stats geoquery.Statter) error {
	batch := make([]*geoquery.Feature, 0, m.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		start := time.Now()
		if _, err := fs.AddFeatures(ctx, batch); err != nil {
			return errors.Wrap(err, "adding features")
		}
		stats.Timing("gdelt.batch", time.Since(start), 1)
		stats.Count("gdelt.written", int64(len(batch)), 1)
		atomic.AddInt64(&m.written, int64(len(batch)))
		m.log.Debugf("wrote %d features", len(batch))
		batch = batch[:0]
		return nil
	}
	for f := range in {
		batch = append(batch, f)
		if len(batch) >= m.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}
