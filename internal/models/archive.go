package models

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// Outcome of a generation attempt as recorded in the response archive.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// ArchivedResponse describes one raw generation response kept on disk.
type ArchivedResponse struct {
	Path      string    `json:"path"`
	Domain    Domain    `json:"domain"`
	OwnerID   int64     `json:"owner_id"`
	Outcome   string    `json:"outcome"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ArchiveDir is the archive directory of one owner's domain responses.
func ArchiveDir(domain Domain, ownerID int64) string {
	return path.Join(string(domain), strconv.FormatInt(ownerID, 10))
}

// ArchivePath names the archive file of a response received at t.
func ArchivePath(domain Domain, ownerID int64, t time.Time, outcome string) string {
	return path.Join(ArchiveDir(domain, ownerID), fmt.Sprintf("%d-%s.txt", t.UnixNano(), outcome))
}

// ParseArchivePath is the inverse of ArchivePath. rel uses forward slashes.
func ParseArchivePath(rel string) (ArchivedResponse, error) {
	parts := strings.Split(rel, "/")
	if len(parts) != 3 || !strings.HasSuffix(parts[2], ".txt") {
		return ArchivedResponse{}, fmt.Errorf("not an archive path: %s", rel)
	}
	domain, err := ParseDomain(parts[0])
	if err != nil {
		return ArchivedResponse{}, err
	}
	owner, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ArchivedResponse{}, fmt.Errorf("archive owner %q: %w", parts[1], err)
	}
	stamp, outcome, ok := strings.Cut(strings.TrimSuffix(parts[2], ".txt"), "-")
	if !ok || (outcome != OutcomeAccepted && outcome != OutcomeRejected) {
		return ArchivedResponse{}, fmt.Errorf("archive name %q has no outcome", parts[2])
	}
	nanos, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return ArchivedResponse{}, fmt.Errorf("archive timestamp %q: %w", stamp, err)
	}
	return ArchivedResponse{
		Path:      rel,
		Domain:    domain,
		OwnerID:   owner,
		Outcome:   outcome,
		CreatedAt: time.Unix(0, nanos).UTC(),
	}, nil
}
