package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"aurora-radio/internal/catalog"
	"aurora-radio/internal/models"
	"aurora-radio/internal/schedule"
)

var archiveNow = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func setupArchiver(t *testing.T) (*Archiver, *gorm.DB, string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	db.AutoMigrate(&models.Segment{}, &models.ArchiveEntry{})

	root := t.TempDir()
	// 8 kbps keeps the byte math small: 1000 bytes per second.
	a := New(db, root, "aurora", "mp3", 8, schedule.MockClock{MockTime: archiveNow})
	return a, db, root
}

func segmentWithAudio(t *testing.T, dir, id string, start time.Time, seconds int, content []byte) models.Segment {
	t.Helper()
	path := filepath.Join(dir, id+".mp3")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return models.Segment{
		SegmentID: id,
		ShowID:    "morning",
		Type:      models.SegmentMusic,
		FilePath:  path,
		StartTime: start,
		EndTime:   start.Add(time.Duration(seconds) * time.Second),
	}
}

func TestArchivePathLayout(t *testing.T) {
	a, _, root := setupArchiver(t)

	start := time.Date(2024, 6, 3, 6, 42, 0, 0, time.UTC)
	want := filepath.Join(root, "2024", "06", "aurora_20240603_0600.mp3")
	if got := a.ArchivePath(start); got != want {
		t.Errorf("ArchivePath = %q, want %q", got, want)
	}

	// Minutes within the hour land in the same file.
	other := a.ArchivePath(time.Date(2024, 6, 3, 6, 5, 0, 0, time.UTC))
	if other != want {
		t.Errorf("same hour mapped to different files: %q vs %q", other, want)
	}
}

func TestRecordToArchiveOffsets(t *testing.T) {
	a, db, _ := setupArchiver(t)
	audioDir := t.TempDir()

	hour := time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)
	first := segmentWithAudio(t, audioDir, "seg-1", hour.Add(5*time.Minute), 4, []byte("AAAA"))
	second := segmentWithAudio(t, audioDir, "seg-2", hour.Add(10*time.Minute), 6, []byte("BBBBBB"))

	if err := a.RecordToArchive(&first); err != nil {
		t.Fatal(err)
	}
	if err := a.RecordToArchive(&second); err != nil {
		t.Fatal(err)
	}

	var entries []models.ArchiveEntry
	db.Order("id ASC").Find(&entries)
	if len(entries) != 2 {
		t.Fatalf("index has %d entries, want 2", len(entries))
	}

	// Each offset is the file length before its append.
	if entries[0].Offset != 0 {
		t.Errorf("first offset = %d, want 0", entries[0].Offset)
	}
	if entries[1].Offset != 4 {
		t.Errorf("second offset = %d, want 4 (length of first append)", entries[1].Offset)
	}
	if entries[0].FilePath != entries[1].FilePath {
		t.Error("same-hour segments landed in different files")
	}

	data, err := os.ReadFile(entries[0].FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "AAAABBBBBB" {
		t.Errorf("archive file = %q, want appends in order", data)
	}
}

func TestRecordToArchiveIsIdempotent(t *testing.T) {
	a, db, _ := setupArchiver(t)
	seg := segmentWithAudio(t, t.TempDir(), "seg-1", archiveNow.Add(-time.Hour), 4, []byte("AAAA"))

	if err := a.RecordToArchive(&seg); err != nil {
		t.Fatal(err)
	}
	if err := a.RecordToArchive(&seg); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.ArchiveEntry{}).Count(&count)
	if count != 1 {
		t.Errorf("double archive produced %d index entries", count)
	}

	var entry models.ArchiveEntry
	db.First(&entry)
	data, _ := os.ReadFile(entry.FilePath)
	if string(data) != "AAAA" {
		t.Errorf("archive file = %q, double append detected", data)
	}
}

func TestRecordToArchiveSkipsMissingSource(t *testing.T) {
	a, db, _ := setupArchiver(t)
	seg := models.Segment{
		SegmentID: "seg-gone",
		ShowID:    "morning",
		Type:      models.SegmentMusic,
		FilePath:  "/nonexistent/clip.mp3",
		StartTime: archiveNow.Add(-time.Hour),
		EndTime:   archiveNow.Add(-time.Hour).Add(3 * time.Minute),
	}

	// Missing audio is logged and skipped, never fatal.
	if err := a.RecordToArchive(&seg); err != nil {
		t.Fatalf("missing source returned error: %v", err)
	}
	var count int64
	db.Model(&models.ArchiveEntry{}).Count(&count)
	if count != 0 {
		t.Error("missing source still indexed")
	}
}

func TestArchiveFinishedOnlyPicksFinishedSegments(t *testing.T) {
	a, db, _ := setupArchiver(t)
	audioDir := t.TempDir()

	done := segmentWithAudio(t, audioDir, "seg-done", archiveNow.Add(-10*time.Minute), 60, []byte("DONE"))
	running := segmentWithAudio(t, audioDir, "seg-live", archiveNow.Add(-time.Minute), 300, []byte("LIVE"))
	if err := db.Create(&done).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&running).Error; err != nil {
		t.Fatal(err)
	}

	if err := a.ArchiveFinished(50); err != nil {
		t.Fatal(err)
	}

	var entries []models.ArchiveEntry
	db.Find(&entries)
	if len(entries) != 1 || entries[0].SegmentID != "seg-done" {
		t.Errorf("archived %+v, want only the finished segment", entries)
	}
}

func TestArchiveFinishedDrainsBacklogOldestFirst(t *testing.T) {
	a, db, _ := setupArchiver(t)
	audioDir := t.TempDir()

	// A backlog larger than the per-pass limit, oldest first.
	ids := []string{"seg-old", "seg-mid", "seg-new"}
	for i, id := range ids {
		seg := segmentWithAudio(t, audioDir, id, archiveNow.Add(time.Duration(i-3)*time.Hour), 60, []byte(id))
		if err := db.Create(&seg).Error; err != nil {
			t.Fatal(err)
		}
	}

	if err := a.ArchiveFinished(2); err != nil {
		t.Fatal(err)
	}

	var first []models.ArchiveEntry
	db.Order("id ASC").Find(&first)
	if len(first) != 2 || first[0].SegmentID != "seg-old" || first[1].SegmentID != "seg-mid" {
		t.Fatalf("first pass archived %+v, want the two oldest segments", first)
	}

	// The next pass picks up where the window left off instead of
	// re-scanning what is already indexed.
	if err := a.ArchiveFinished(2); err != nil {
		t.Fatal(err)
	}

	var all []models.ArchiveEntry
	db.Find(&all)
	if len(all) != 3 {
		t.Fatalf("backlog not drained: %d of 3 segments archived", len(all))
	}
}

func morningShow() *catalog.ShowConfig {
	return &catalog.ShowConfig{
		ID:   "morning",
		Name: "Morning Drive",
		Schedule: catalog.Schedule{
			Days:          []string{"Mon"},
			Start:         "06:00",
			DurationHours: 3,
		},
	}
}

func TestAssembleEpisode(t *testing.T) {
	a, _, _ := setupArchiver(t)
	audioDir := t.TempDir()

	// Two 4-second segments inside the 06:00-09:00 window, one outside.
	// At 8 kbps, 4 seconds is exactly 4000 bytes.
	hour := time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)
	inA := segmentWithAudio(t, audioDir, "seg-a", hour.Add(5*time.Minute), 4, fillBytes('A', 4000))
	inB := segmentWithAudio(t, audioDir, "seg-b", hour.Add(10*time.Minute), 4, fillBytes('B', 4000))
	out := segmentWithAudio(t, audioDir, "seg-x", hour.Add(4*time.Hour), 4, fillBytes('X', 4000))

	for _, seg := range []*models.Segment{&inA, &inB, &out} {
		if err := a.RecordToArchive(seg); err != nil {
			t.Fatal(err)
		}
	}

	episodePath := filepath.Join(t.TempDir(), "episodes", "morning_20240603.mp3")
	got, err := a.AssembleEpisode(morningShow(), hour, episodePath)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 8000 {
		t.Fatalf("episode is %d bytes, want 8000 (two in-window segments)", len(data))
	}
	if data[0] != 'A' || data[4000] != 'B' {
		t.Error("episode spans out of order or misaligned")
	}
	for _, b := range data {
		if b == 'X' {
			t.Fatal("out-of-window segment leaked into the episode")
		}
	}
}

func TestAssembleEpisodeEmptyWindow(t *testing.T) {
	a, _, _ := setupArchiver(t)
	_, err := a.AssembleEpisode(morningShow(), archiveNow, filepath.Join(t.TempDir(), "ep.mp3"))
	if err == nil {
		t.Fatal("empty window assembled without error")
	}
	want := `no segments archived for show "morning"`
	if got := err.Error(); len(got) < len(want) || got[:len(want)] != want {
		t.Errorf("error = %q, want prefix %q", got, want)
	}
}

func TestCleanupOldArchivesKeepsFiles(t *testing.T) {
	a, db, _ := setupArchiver(t)
	audioDir := t.TempDir()

	old := segmentWithAudio(t, audioDir, "seg-old", archiveNow.AddDate(0, 0, -40), 4, []byte("OLD!"))
	recent := segmentWithAudio(t, audioDir, "seg-new", archiveNow.Add(-time.Hour), 4, []byte("NEW!"))
	if err := a.RecordToArchive(&old); err != nil {
		t.Fatal(err)
	}
	if err := a.RecordToArchive(&recent); err != nil {
		t.Fatal(err)
	}

	var oldEntry models.ArchiveEntry
	db.Where("segment_id = ?", "seg-old").First(&oldEntry)

	removed, err := a.CleanupOldArchives(30)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	var count int64
	db.Model(&models.ArchiveEntry{}).Count(&count)
	if count != 1 {
		t.Errorf("index has %d entries after cleanup, want 1", count)
	}

	// Hourly files are shared; cleanup must leave them on disk.
	if _, err := os.Stat(oldEntry.FilePath); err != nil {
		t.Errorf("archive file removed by retention cleanup: %v", err)
	}
}

func fillBytes(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
