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

package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

type nopAdapter struct{}

func (n *nopAdapter) Start() error { return nil }
func (n *nopAdapter) Stop() error  { return nil }
func (n *nopAdapter) SendAction(ctx context.Context, action string, params map[string]interface{}, opts ...types.ActionOption) (interface{}, error) {
	return nil, nil
}
func (n *nopAdapter) SendMessage(ctx context.Context, msg types.OutgoingMessage) error { return nil }
func (n *nopAdapter) MuteGroupMember(ctx context.Context, groupID, userID string, durationSec int64) error {
	return nil
}
func (n *nopAdapter) On(eventName string, handler types.EventHandler)                {}
func (n *nopAdapter) AddInterceptor(eventName string, interceptor types.Interceptor) {}

func TestRegistryRegisterAndNew(t *testing.T) {
	r := &AdapterRegistry{constructors: make(map[string]Constructor)}
	require.NoError(t, r.Register("v99", KindClient, func(binding Binding, config types.Config) (types.ChatAdapter, error) {
		return &nopAdapter{}, nil
	}))

	built, err := r.New(Binding{Generation: "v99", Kind: KindClient}, types.NewConfig())
	require.NoError(t, err)
	assert.NotNil(t, built)
}

func TestRegistryDuplicate(t *testing.T) {
	r := &AdapterRegistry{constructors: make(map[string]Constructor)}
	ctor := func(binding Binding, config types.Config) (types.ChatAdapter, error) {
		return &nopAdapter{}, nil
	}
	require.NoError(t, r.Register("v99", KindClient, ctor))
	assert.Error(t, r.Register("v99", KindClient, ctor))
}

func TestRegistryUnknown(t *testing.T) {
	r := &AdapterRegistry{constructors: make(map[string]Constructor)}
	_, err := r.New(Binding{Generation: "v0", Kind: "tcp"}, types.NewConfig())
	assert.Error(t, err)
}
