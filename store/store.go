/*
 * Copyright 2024 The SparkBridge Authors.
 *
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

// Package store persists the rule set and variable table as a single
// pretty-printed JSON document.
//
// Package store 以单个 JSON 文档持久化规则和变量。
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sparkbridge/sparkbridge3/api/types"
	"github.com/sparkbridge/sparkbridge3/utils/json"
)

// Store 平面文件存储
type Store struct {
	path string
}

// New 创建存储，path 为规则文档路径
func New(path string) *Store {
	return &Store{path: path}
}

// Path 文档路径
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted document. A missing file yields an empty
// document, not an error.
func (s *Store) Load() (*types.RuleData, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.RuleData{Rules: []*types.Rule{}, Variables: []types.Variable{}}, nil
		}
		return nil, fmt.Errorf("read rule document: %w", err)
	}
	var data types.RuleData
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("parse rule document: %w", err)
	}
	if data.Rules == nil {
		data.Rules = []*types.Rule{}
	}
	if data.Variables == nil {
		data.Variables = []types.Variable{}
	}
	return &data, nil
}

// Save writes the full document. The write goes to a temp file in the same
// directory followed by a rename, so a concurrent Load never observes a
// partial document.
func (s *Store) Save(data *types.RuleData) error {
	content, err := json.MarshalIndent(data)
	if err != nil {
		return fmt.Errorf("encode rule document: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write rule document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close rule document: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace rule document: %w", err)
	}
	return nil
}
