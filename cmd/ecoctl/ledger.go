package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/ecotrack/internal/domain"
)

// ledgerFile is the document form accepted by ecoctl. A bare list of
// submissions is accepted as well.
type ledgerFile struct {
	Activities []domain.Submission `yaml:"activities"`
}

// loadLedger reads submissions from path and normalises them into a ledger,
// stamping entries one minute apart starting at start.
func loadLedger(path string, start time.Time) (*domain.Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	subs, err := parseSubmissions(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	activities := make([]domain.Activity, 0, len(subs))
	for i, sub := range subs {
		activity := sub.Normalize(start.Add(time.Duration(i) * time.Minute))
		activity.ID = fmt.Sprintf("entry-%d", i+1)
		activity.Seq = int64(i + 1)
		activities = append(activities, activity)
	}
	return domain.NewLedger(activities...), nil
}

// parseSubmissions decodes YAML, which also covers JSON documents.
func parseSubmissions(data []byte) ([]domain.Submission, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Submission{}, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return []domain.Submission{}, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var subs []domain.Submission
		if err := root.Decode(&subs); err != nil {
			return nil, err
		}
		return subs, nil
	case yaml.MappingNode:
		var doc ledgerFile
		if err := root.Decode(&doc); err != nil {
			return nil, err
		}
		return doc.Activities, nil
	default:
		return nil, fmt.Errorf("expected a list of activities at line %d", root.Line)
	}
}
