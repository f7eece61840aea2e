package practice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoomMetadata(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		want     SessionConfig
		wantErr  bool
	}{
		{
			name:     "empty",
			metadata: "",
			want:     DefaultSessionConfig(),
		},
		{
			name:     "full",
			metadata: `{"topic":"job interviews","difficulty":"advanced"}`,
			want:     SessionConfig{Topic: "job interviews", Difficulty: DifficultyAdvanced},
		},
		{
			name:     "topic only",
			metadata: `{"topic":"cooking"}`,
			want:     SessionConfig{Topic: "cooking", Difficulty: DifficultyIntermediate},
		},
		{
			name:     "unknown difficulty",
			metadata: `{"topic":"cooking","difficulty":"expert"}`,
			want:     SessionConfig{Topic: "cooking", Difficulty: DifficultyIntermediate},
		},
		{
			name:     "blank topic",
			metadata: `{"topic":"  ","difficulty":"Beginner"}`,
			want:     SessionConfig{Topic: DefaultTopic, Difficulty: DifficultyBeginner},
		},
		{
			name:     "malformed json",
			metadata: "{not json",
			want:     DefaultSessionConfig(),
			wantErr:  true,
		},
		{
			name:     "wrong topic type",
			metadata: `{"topic":42,"difficulty":"beginner"}`,
			want:     SessionConfig{Topic: DefaultTopic, Difficulty: DifficultyBeginner},
		},
		{
			name:     "wrong difficulty type keeps topic",
			metadata: `{"topic":"travel","difficulty":3}`,
			want:     SessionConfig{Topic: "travel", Difficulty: DifficultyIntermediate},
		},
		{
			name:     "null fields",
			metadata: `{"topic":null,"difficulty":null}`,
			want:     DefaultSessionConfig(),
		},
		{
			name:     "not an object",
			metadata: `["travel","advanced"]`,
			want:     DefaultSessionConfig(),
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SessionConfig
			var err error
			require.NotPanics(t, func() { got, err = ParseRoomMetadata(tt.metadata) })
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDifficulty(t *testing.T) {
	level, ok := ParseDifficulty("ADVANCED")
	assert.True(t, ok)
	assert.Equal(t, DifficultyAdvanced, level)

	level, ok = ParseDifficulty("")
	assert.False(t, ok)
	assert.Equal(t, DifficultyIntermediate, level)
}
