package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
)

// TestGCSStore runs against a Cloud Storage emulator when
// STORAGE_EMULATOR_HOST and TEST_GCS_BUCKET are set.
func TestGCSStore(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" || bucket == "" {
		t.Skip("STORAGE_EMULATOR_HOST or TEST_GCS_BUCKET not set")
	}

	ctx := context.Background()
	client, err := storage.NewClient(ctx, option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("storage.NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	testStoreContract(t, NewGCSStore(client.Bucket(bucket), "test/", 1024), 1024)
}

func TestMetaFromAttrs(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		attrs *storage.ObjectAttrs
		want  Meta
	}{
		{
			name: "metadata present",
			attrs: &storage.ObjectAttrs{
				ContentType: "text/csv",
				Created:     created,
				Metadata: map[string]string{
					metaOriginalName: "rows.csv",
					metaUploadedAt:   "2024-05-02T08:30:00Z",
				},
			},
			want: Meta{
				OriginalName: "rows.csv",
				ContentType:  "text/csv",
				Size:         7,
				UploadedAt:   time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC),
			},
		},
		{
			name:  "falls back to object creation time",
			attrs: &storage.ObjectAttrs{Created: created},
			want: Meta{
				ContentType: defaultContentType,
				Size:        7,
				UploadedAt:  created,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := metaFromAttrs(tt.attrs, 7)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("metaFromAttrs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
