package signature

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		present bool
		want    Header
		wantErr error
	}{
		{
			name:    "absent",
			present: false,
			wantErr: ErrHeaderAbsent,
		},
		{
			name:    "sha256 digest",
			value:   "sha256=8199e7481c3efbf3bd7450ddb6c3599a915e893f2140bba663cb45c5347f4330",
			present: true,
			want:    Header{Algorithm: "sha256", Digest: "8199e7481c3efbf3bd7450ddb6c3599a915e893f2140bba663cb45c5347f4330"},
		},
		{
			name:    "unknown algorithm accepted",
			value:   "md5=abcd",
			present: true,
			want:    Header{Algorithm: "md5", Digest: "abcd"},
		},
		{
			name:    "digest not validated as hex",
			value:   "sha256=zz",
			present: true,
			want:    Header{Algorithm: "sha256", Digest: "zz"},
		},
		{name: "no separator", value: "notsha256hexatall", present: true, wantErr: ErrBadHeaderFormat},
		{name: "empty digest", value: "sha256=", present: true, wantErr: ErrBadHeaderFormat},
		{name: "empty algorithm", value: "=abcd", present: true, wantErr: ErrBadHeaderFormat},
		{name: "two separators", value: "sha256=ab=cd", present: true, wantErr: ErrBadHeaderFormat},
		{name: "present but empty", value: "", present: true, wantErr: ErrBadHeaderFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeader(tt.value, tt.present)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.value, got.String())
		})
	}
}
