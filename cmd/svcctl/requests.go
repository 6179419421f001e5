package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edvin/svcctl/internal/model"
)

// loadRequests reads one or more YAML documents, each a request. "-" reads
// stdin.
func loadRequests(path string, stdin io.Reader) ([]model.DesiredState, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read request file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return decodeRequests(r)
}

func decodeRequests(r io.Reader) ([]model.DesiredState, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var reqs []model.DesiredState
	for i := 1; ; i++ {
		var req model.DesiredState
		err := dec.Decode(&req)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse request document %d: %w", i, err)
		}
		reqs = append(reqs, req)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("request file contains no documents")
	}
	return reqs, nil
}
