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

package s3

import (
	"io"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pilosa/geoquery/csv"
	"github.com/pkg/errors"
)

// NewClient returns an S3 client for the given AWS region. Credentials are
// taken from the environment as usual for the AWS SDK.
func NewClient(region string) (s3iface.S3API, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region)},
	)
	if err != nil {
		return nil, errors.Wrap(err, "getting new session")
	}
	return s3.New(sess), nil
}

// Object is a csv.OpenStringer which reads a single S3 object. Each call to
// Open fetches the object again from the beginning.
type Object struct {
	svc    s3iface.S3API
	bucket string
	key    string
}

// NewObject returns an Object for bucket/key.
func NewObject(svc s3iface.S3API, bucket, key string) *Object {
	return &Object{svc: svc, bucket: bucket, key: key}
}

// Open implements csv.Opener.
func (o *Object) Open() (io.ReadCloser, error) {
	result, err := o.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %v", o.key)
	}
	return result.Body, nil
}

func (o *Object) String() string {
	return "s3://" + o.bucket + "/" + o.key
}

// Openers lists the objects in bucket whose keys start with prefix and
// returns an Object for each, in key order. Keys ending in "/" are skipped.
func Openers(svc s3iface.S3API, bucket, prefix string) ([]csv.OpenStringer, error) {
	var keys []string
	err := svc.ListObjectsPages(&s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsOutput, last bool) bool {
		for _, obj := range page.Contents {
			if k := aws.StringValue(obj.Key); k != "" && k[len(k)-1] != '/' {
				keys = append(keys, k)
			}
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing objects")
	}
	sort.Strings(keys)
	ret := make([]csv.OpenStringer, len(keys))
	for i, k := range keys {
		ret[i] = NewObject(svc, bucket, k)
	}
	return ret, nil
}
