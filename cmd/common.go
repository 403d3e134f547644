/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/valpere/chunktran/internal/llm"
	"github.com/valpere/chunktran/internal/markdown"
	"github.com/valpere/chunktran/internal/store"
	"github.com/valpere/chunktran/internal/validator"
)

const (
	pingTimeout          = 5 * time.Second
	// the encoding is downloaded on first use
	tokenizerLoadTimeout = 3 * time.Second
)

// openStore opens the SQLite database, creating its directory first.
func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// buildClient validates cfg, constructs the backend and checks that it is
// reachable when the backend supports a cheap check.
func buildClient(ctx context.Context, cfg llm.Config) (llm.Client, error) {
	client, err := llm.New(cfg)
	if err != nil {
		return nil, err
	}
	if p, ok := client.(llm.Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// plainTextValidator checks the language of the prose only, so markup and
// code in a chunk do not skew detection.
type plainTextValidator struct {
	v *validator.Validator
}

func (p plainTextValidator) IsValid(text, targetLang string) (bool, error) {
	return p.v.IsValid(markdown.ToPlainText([]byte(text)), targetLang)
}

// truncate shortens s to width display cells, flattening newlines.
func truncate(s string, width int) string {
	flat := []rune(s)
	for i, r := range flat {
		if r == '\n' || r == '\t' || r == '\r' {
			flat[i] = ' '
		}
	}
	return runewidth.Truncate(string(flat), width, "...")
}
