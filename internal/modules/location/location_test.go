package location

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	here := &Coordinate{Latitude: -6.2, Longitude: 106.8}
	tests := []struct {
		name    string
		access  Access
		coord   *Coordinate
		want    Coordinate
		wantErr error
	}{
		{"granted", AccessGranted, here, *here, nil},
		{"granted without fix", AccessGranted, nil, Coordinate{}, ErrUnknown},
		{"denied", AccessDenied, here, Coordinate{}, ErrAccessDenied},
		{"restricted", AccessRestricted, here, Coordinate{}, ErrAccessDenied},
		{"unrecognised", ParseAccess("maybe"), here, Coordinate{}, ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStaticProvider(tt.access, tt.coord).RequestCurrentLocation(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAccess(t *testing.T) {
	assert.Equal(t, AccessGranted, ParseAccess(" Granted "))
	assert.Equal(t, AccessDenied, ParseAccess("DENIED"))
}

func TestFixed(t *testing.T) {
	got, err := Fixed{Latitude: 1, Longitude: 2}.RequestCurrentLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Latitude: 1, Longitude: 2}, got)

	_, err = Fixed{Latitude: 91}.RequestCurrentLocation(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
	_, err = Fixed{Longitude: -181}.RequestCurrentLocation(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestMapsURL(t *testing.T) {
	assert.Equal(t, "https://www.google.com/maps?q=-6.2,106.8",
		MapsURL(Coordinate{Latitude: -6.2, Longitude: 106.8}))
}
