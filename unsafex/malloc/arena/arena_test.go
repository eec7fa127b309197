/*
 * Copyright 2024 CloudWeGo Authors
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

package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a, err := New(4096)
	require.NoError(t, err)
	assert.Equal(t, 4096, a.Len())
	assert.Len(t, a.Bytes(), 4096)
	assert.False(t, a.Mapped())
	assert.NoError(t, a.Close())
	assert.Nil(t, a.Bytes())
	assert.NoError(t, a.Close())

	_, err = New(0)
	assert.Error(t, err)
	_, err = Map(-1)
	assert.Error(t, err)
}
