package lode

import "testing"

func TestS3Config_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantErr bool
	}{
		{
			name:    "empty bucket fails",
			cfg:     S3Config{Bucket: ""},
			wantErr: true,
		},
		{
			name:    "valid bucket only",
			cfg:     S3Config{Bucket: "my-bucket"},
			wantErr: false,
		},
		{
			name:    "valid bucket with prefix",
			cfg:     S3Config{Bucket: "my-bucket", Prefix: "crossflow/reports"},
			wantErr: false,
		},
		{
			name:    "valid bucket with region",
			cfg:     S3Config{Bucket: "my-bucket", Region: "us-west-2"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path       string
		wantBucket string
		wantPrefix string
	}{
		{"my-bucket", "my-bucket", ""},
		{"my-bucket/prefix", "my-bucket", "prefix"},
		{"my-bucket/multi/level/prefix", "my-bucket", "multi/level/prefix"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			bucket, prefix := ParseS3Path(tt.path)
			if bucket != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", bucket, tt.wantBucket)
			}
			if prefix != tt.wantPrefix {
				t.Errorf("prefix = %q, want %q", prefix, tt.wantPrefix)
			}
		})
	}
}

func TestS3Options(t *testing.T) {
	if got := s3Options(S3Config{Bucket: "b"}); len(got) != 0 {
		t.Errorf("default options = %d, want 0", len(got))
	}
	if got := s3Options(S3Config{Bucket: "b", Endpoint: "http://localhost:9000", UsePathStyle: true}); len(got) != 2 {
		t.Errorf("custom options = %d, want 2", len(got))
	}
}

func TestMatchesPartitionValue(t *testing.T) {
	path := "crossflow/day=2026-03-01/session_id=sess-10/data.jsonl"
	if !matchesPartitionValue(path, "session_id", "sess-10") {
		t.Error("exact segment should match")
	}
	if matchesPartitionValue(path, "session_id", "sess-1") {
		t.Error("prefix of a value must not match")
	}
}
