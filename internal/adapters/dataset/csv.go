// Package dataset loads the benchmark question set from CSV. The file is
// expected to carry "question" and "answer" columns; rows are indexed in
// file order.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/finarena/finarena/internal/core/domain"
)

type CSVLoader struct {
	path string
}

func NewCSVLoader(path string) *CSVLoader {
	return &CSVLoader{path: path}
}

// Load reads the full question set in file order.
func (l *CSVLoader) Load(ctx context.Context) ([]domain.Question, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	questionCol, answerCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "question":
			questionCol = i
		case "answer":
			answerCol = i
		}
	}
	if questionCol < 0 || answerCol < 0 {
		return nil, fmt.Errorf("dataset %s missing question/answer columns", l.path)
	}

	var questions []domain.Question
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row: %w", err)
		}
		if questionCol >= len(row) || answerCol >= len(row) {
			continue
		}
		text := strings.TrimSpace(row[questionCol])
		if text == "" {
			continue
		}
		questions = append(questions, domain.Question{
			Index:    len(questions),
			Text:     text,
			Expected: strings.TrimSpace(row[answerCol]),
		})
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("dataset %s contains no questions", l.path)
	}
	return questions, nil
}
