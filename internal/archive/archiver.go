package archive

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"aurora-radio/internal/catalog"
	"aurora-radio/internal/models"
	"aurora-radio/internal/schedule"
)

// Archiver appends finished segment audio into shared hourly archive files
// and maintains the byte-offset index used for time-shifted playback.
// It is the only writer of the archive index.
type Archiver struct {
	db          *gorm.DB
	root        string
	stationID   string
	format      string
	bitrateKbps int
	clock       schedule.Clock
}

func New(db *gorm.DB, root, stationID, format string, bitrateKbps int, clock schedule.Clock) *Archiver {
	if clock == nil {
		clock = schedule.RealClock{}
	}
	return &Archiver{
		db:          db,
		root:        root,
		stationID:   stationID,
		format:      format,
		bitrateKbps: bitrateKbps,
		clock:       clock,
	}
}

// ArchivePath names the shared hourly file a segment belongs to, keyed by
// the segment's start hour in UTC, nested by year/month.
func (a *Archiver) ArchivePath(start time.Time) string {
	start = start.UTC()
	name := fmt.Sprintf("%s_%s_%02d00.%s", a.stationID, start.Format("20060102"), start.Hour(), a.format)
	return filepath.Join(a.root, fmt.Sprintf("%04d", start.Year()), fmt.Sprintf("%02d", int(start.Month())), name)
}

// RecordToArchive appends a segment's audio to its hourly archive file and
// records the byte offset. A missing source file is logged and skipped,
// never fatal. Already-archived segments are skipped.
func (a *Archiver) RecordToArchive(seg *models.Segment) error {
	var existing models.ArchiveEntry
	err := a.db.Where("segment_id = ?", seg.SegmentID).First(&existing).Error
	if err == nil {
		return nil // already archived
	}
	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("check archive index: %w", err)
	}

	data, err := os.ReadFile(seg.FilePath)
	if err != nil {
		log.Printf("⚠️ Segment audio missing, skipping archive: %s (%v)", seg.FilePath, err)
		return nil
	}

	path := a.ArchivePath(seg.StartTime)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()

	// The offset recorded is the file length before this append; together
	// with the file path it is the entry's only valid address.
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive file: %w", err)
	}
	offset := info.Size()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append segment %s: %w", seg.SegmentID, err)
	}

	entry := models.ArchiveEntry{
		SegmentID: seg.SegmentID,
		ShowID:    seg.ShowID,
		Type:      seg.Type,
		FilePath:  path,
		Offset:    offset,
		Duration:  seg.DurationSeconds(),
		StartTime: seg.StartTime,
		EndTime:   seg.EndTime,
	}
	if err := a.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("index archive entry: %w", err)
	}

	log.Printf("📼 Archived %s segment %s at offset %d in %s", seg.Type, seg.SegmentID, offset, filepath.Base(path))
	return nil
}

// ArchiveFinished records finished segments that are not yet in the index,
// oldest first so a backlog larger than limit drains across passes instead
// of starving its tail. Each individual failure is logged and skipped.
func (a *Archiver) ArchiveFinished(limit int) error {
	now := a.clock.Now()
	indexed := a.db.Model(&models.ArchiveEntry{}).Select("segment_id")
	var segments []models.Segment
	err := a.db.
		Where("end_time <= ?", now).
		Where("segment_id NOT IN (?)", indexed).
		Order("end_time ASC").
		Limit(limit).
		Find(&segments).Error
	if err != nil {
		return fmt.Errorf("query finished segments: %w", err)
	}
	for i := range segments {
		if err := a.RecordToArchive(&segments[i]); err != nil {
			log.Printf("⚠️ Archive failed for segment %s: %v", segments[i].SegmentID, err)
		}
	}
	return nil
}

// AssembleEpisode stitches a show's airing on the given date back together
// from the archive, writing the result to outputPath. Entries are read in
// index (insertion) order, each contributing its estimated byte span.
func (a *Archiver) AssembleEpisode(show *catalog.ShowConfig, date time.Time, outputPath string) (string, error) {
	startMinute := show.Schedule.StartMinute()
	windowStart := time.Date(date.Year(), date.Month(), date.Day(),
		startMinute/60, startMinute%60, 0, 0, time.UTC)
	windowEnd := windowStart.Add(show.Schedule.Duration())

	var entries []models.ArchiveEntry
	err := a.db.
		Where("show_id = ? AND start_time < ? AND end_time > ?", show.ID, windowEnd, windowStart).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return "", fmt.Errorf("query archive index: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no segments archived for show %q on %s", show.ID, date.Format("2006-01-02"))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create episode file: %w", err)
	}
	defer out.Close()

	bytesPerSecond := int64(a.bitrateKbps) * 1000 / 8
	for i := range entries {
		if err := a.copySpan(out, &entries[i], bytesPerSecond); err != nil {
			log.Printf("⚠️ Skipping archive entry %s: %v", entries[i].SegmentID, err)
		}
	}

	log.Printf("📼 Assembled episode for %q (%s): %d segments -> %s",
		show.ID, date.Format("2006-01-02"), len(entries), outputPath)
	return outputPath, nil
}

func (a *Archiver) copySpan(out io.Writer, entry *models.ArchiveEntry, bytesPerSecond int64) error {
	f, err := os.Open(entry.FilePath)
	if err != nil {
		return fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive file: %w", err)
	}

	span := int64(entry.Duration * float64(bytesPerSecond))
	if entry.Offset >= info.Size() {
		return fmt.Errorf("offset %d beyond file size %d", entry.Offset, info.Size())
	}
	if entry.Offset+span > info.Size() {
		span = info.Size() - entry.Offset
	}

	if _, err := f.Seek(entry.Offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to offset %d: %w", entry.Offset, err)
	}
	if _, err := io.CopyN(out, f, span); err != nil && err != io.EOF {
		return fmt.Errorf("copy %d bytes: %w", span, err)
	}
	return nil
}

// CleanupOldArchives drops index entries older than the retention cutoff.
// The underlying hourly files are left in place: several segments share one
// file, so deleting a file for one expired entry would corrupt the offsets
// of entries still referencing it. File removal stays an administrative
// operation.
func (a *Archiver) CleanupOldArchives(retentionDays int) (int64, error) {
	cutoff := a.clock.Now().AddDate(0, 0, -retentionDays)
	res := a.db.Where("start_time < ?", cutoff).Delete(&models.ArchiveEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("archive retention delete: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 Archive retention: dropped %d index entries older than %s", res.RowsAffected, cutoff.Format("2006-01-02"))
	}
	return res.RowsAffected, nil
}
