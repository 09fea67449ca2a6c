package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/fingerprint"
)

// Store is a database.Store over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	guards  database.InsertGuards
}

var _ database.Store = (*Store)(nil)

// New wraps an open connection pool.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the backend dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return database.WrapError("ping", s.db.PingContext(ctx))
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func (s *Store) rebind(query string) string {
	return rebind(s.dialect, query)
}

// dbTime normalises a datetime for storage: UTC, whole seconds.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: dbTime(*t), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// insertReturningID runs an INSERT and reads back the newest id of table
// while holding guard.
func (s *Store) insertReturningID(ctx context.Context, guard *sync.Mutex, table, query string, args ...any) (int64, error) {
	guard.Lock()
	defer guard.Unlock()

	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM "+table+" ORDER BY id DESC LIMIT 1").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("read back %s id: %w", table, err)
	}
	return id, nil
}

// peopleFilter returns the WHERE fragment requiring a photo to contain
// every listed person.
func peopleFilter(people []int64) (string, []any) {
	if len(people) == 0 {
		return "", nil
	}
	var b strings.Builder
	args := make([]any, 0, len(people))
	for _, p := range people {
		b.WriteString(" AND EXISTS (SELECT 1 FROM appearances a WHERE a.photo = photos.id AND a.person = ?)")
		args = append(args, p)
	}
	return b.String(), args
}

// ---------------------------------------------------------------- photos

const photoColumns = `id, digest, file_name, image_width, image_height, thumb_width, thumb_height, original_datetime, upload_datetime`

func scanPhoto(row interface{ Scan(...any) error }) (*database.Photo, error) {
	var (
		p        database.Photo
		digest   []byte
		original sql.NullTime
		upload   time.Time
	)
	if err := row.Scan(&p.ID, &digest, &p.FileName, &p.ImageWidth, &p.ImageHeight,
		&p.ThumbWidth, &p.ThumbHeight, &original, &upload); err != nil {
		return nil, err
	}
	d, err := fingerprint.FromBytes(digest)
	if err != nil {
		return nil, fmt.Errorf("photo %d: %w", p.ID, err)
	}
	p.Digest = d
	p.OriginalDatetime = timePtr(original)
	p.UploadDatetime = upload.UTC()
	return &p, nil
}

// InsertPhoto records a photo and returns its id.
func (s *Store) InsertPhoto(ctx context.Context, photo database.NewPhoto) (int64, error) {
	id, err := s.insertReturningID(ctx, &s.guards.Photos, "photos", `
		INSERT INTO photos (digest, file_name, image_width, image_height, thumb_width, thumb_height, original_datetime, upload_datetime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		photo.Digest.Bytes(), photo.FileName, photo.ImageWidth, photo.ImageHeight,
		photo.ThumbWidth, photo.ThumbHeight, nullTime(photo.OriginalDatetime), dbTime(photo.UploadDatetime))
	return id, database.WrapError("insert photo", err)
}

// FindPhotoByDigest returns the id of the photo with the digest.
func (s *Store) FindPhotoByDigest(ctx context.Context, digest fingerprint.Digest) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT id FROM photos WHERE digest = ? LIMIT 1"), digest.Bytes()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, database.WrapError("find photo by digest", err)
	}
	return id, true, nil
}

// GetPhoto returns the photo, or nil if it does not exist.
func (s *Store) GetPhoto(ctx context.Context, id int64) (*database.Photo, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+photoColumns+" FROM photos WHERE id = ?"), id)
	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapError("get photo", err)
	}
	return p, nil
}

// CountPerDay returns the number of photos per calendar day (UTC) of their
// taken time, newest day first.
func (s *Store) CountPerDay(ctx context.Context, people []int64) ([]database.DayCount, error) {
	filter, args := peopleFilter(people)
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT original_datetime, upload_datetime FROM photos WHERE 1=1"+filter), args...)
	if err != nil {
		return nil, database.WrapError("count photos per day", err)
	}
	defer rows.Close()

	counts := make(map[time.Time]int)
	for rows.Next() {
		var (
			original sql.NullTime
			upload   time.Time
		)
		if err := rows.Scan(&original, &upload); err != nil {
			return nil, database.WrapError("count photos per day", err)
		}
		taken := upload
		if original.Valid {
			taken = original.Time
		}
		counts[truncateDay(taken)]++
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError("count photos per day", err)
	}

	out := make([]database.DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, database.DayCount{Date: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PhotosForDay returns the photos taken on day (UTC), ordered by taken
// time then id.
func (s *Store) PhotosForDay(ctx context.Context, day time.Time, people []int64) ([]database.Photo, error) {
	start := truncateDay(day)
	end := start.AddDate(0, 0, 1)
	filter, filterArgs := peopleFilter(people)

	args := append([]any{start, end}, filterArgs...)
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+photoColumns+` FROM photos
		WHERE COALESCE(original_datetime, upload_datetime) >= ?
		  AND COALESCE(original_datetime, upload_datetime) < ?`+filter+`
		ORDER BY COALESCE(original_datetime, upload_datetime), id`), args...)
	if err != nil {
		return nil, database.WrapError("photos for day", err)
	}
	defer rows.Close()

	var photos []database.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, database.WrapError("photos for day", err)
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError("photos for day", err)
	}
	return photos, nil
}

// ---------------------------------------------------------------- people

const personColumns = `id, first_name, middle_names, surname, display_name, dob`

func scanPerson(row interface{ Scan(...any) error }) (*database.Person, error) {
	var (
		p            database.Person
		middle, disp sql.NullString
		dob          sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.FirstName, &middle, &p.Surname, &disp, &dob); err != nil {
		return nil, err
	}
	p.MiddleNames = stringPtr(middle)
	p.DisplayName = stringPtr(disp)
	if dob.Valid {
		d := truncateDay(dob.Time)
		p.DOB = &d
	}
	return &p, nil
}

// InsertPlaceholderPerson mints a person with placeholder names.
func (s *Store) InsertPlaceholderPerson(ctx context.Context) (int64, error) {
	id, err := s.insertReturningID(ctx, &s.guards.People, "people",
		"INSERT INTO people (first_name, middle_names, surname) VALUES (?, ?, ?)",
		constants.PlaceholderFirstName, constants.PlaceholderMiddleNames, constants.PlaceholderSurname)
	return id, database.WrapError("insert person", err)
}

// GetPerson returns the person, or nil if it does not exist.
func (s *Store) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+personColumns+" FROM people WHERE id = ?"), id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapError("get person", err)
	}
	return p, nil
}

// ListPeople returns everyone ordered by surname, first name and id.
func (s *Store) ListPeople(ctx context.Context) ([]database.Person, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+personColumns+" FROM people ORDER BY surname, first_name, id")
	if err != nil {
		return nil, database.WrapError("list people", err)
	}
	defer rows.Close()

	var people []database.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, database.WrapError("list people", err)
		}
		people = append(people, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError("list people", err)
	}
	return people, nil
}

// UpdatePerson overwrites every field of the person; nil fields become NULL.
func (s *Store) UpdatePerson(ctx context.Context, person database.Person) error {
	var dob sql.NullTime
	if person.DOB != nil {
		dob = sql.NullTime{Time: truncateDay(*person.DOB), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE people SET first_name = ?, middle_names = ?, surname = ?, display_name = ?, dob = ?
		WHERE id = ?`),
		person.FirstName, nullString(person.MiddleNames), person.Surname, nullString(person.DisplayName), dob, person.ID)
	if err != nil {
		return database.WrapError("update person", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.WrapError("update person", err)
	}
	if n == 0 {
		// MySQL reports 0 for rows matched but unchanged.
		exists, err := s.personExists(ctx, person.ID)
		if err != nil {
			return database.WrapError("update person", err)
		}
		if !exists {
			return database.ErrNoSuchRecord
		}
	}
	return nil
}

func (s *Store) personExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT 1 FROM people WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// MergePeople moves src's appearances to dst, deletes src's avatar and then
// src itself, in one transaction.
func (s *Store) MergePeople(ctx context.Context, dst, src int64) error {
	if dst == src {
		return database.ErrSelfMerge
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return database.WrapError("merge people", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var one int
	err = tx.QueryRowContext(ctx, s.rebind("SELECT 1 FROM people WHERE id = ?"), dst).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("merge target %d: %w", dst, database.ErrNoSuchRecord)
	}
	if err != nil {
		return database.WrapError("merge people: find target", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM avatars WHERE person = ?"), src); err != nil {
		return database.WrapError("merge people: delete avatar", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind("UPDATE appearances SET person = ? WHERE person = ?"), dst, src); err != nil {
		return database.WrapError("merge people: reassign appearances", err)
	}
	res, err := tx.ExecContext(ctx, s.rebind("DELETE FROM people WHERE id = ?"), src)
	if err != nil {
		return database.WrapError("merge people: delete person", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.WrapError("merge people", err)
	}
	if n == 0 {
		return database.ErrNoSuchRecord
	}

	return database.WrapError("merge people: commit", tx.Commit())
}

// ---------------------------------------------------------------- appearances

const appearanceColumns = `id, person, photo, is_reference, box_top, box_left, box_bottom, box_right, face_encoding`

func (s *Store) scanAppearance(row interface{ Scan(...any) error }) (*database.Appearance, error) {
	var a database.Appearance
	emb := s.dialect.NewEmbeddingScanner()
	if err := row.Scan(&a.ID, &a.Person, &a.Photo, &a.Reference, &a.Top, &a.Left, &a.Bottom, &a.Right, emb); err != nil {
		return nil, err
	}
	e, err := emb.Embedding()
	if err != nil {
		return nil, fmt.Errorf("appearance %d: %w", a.ID, err)
	}
	a.Embedding = e
	return &a, nil
}

// InsertAppearance records an appearance and returns its id.
func (s *Store) InsertAppearance(ctx context.Context, a database.Appearance) (int64, error) {
	emb, err := s.dialect.EncodeEmbedding(a.Embedding)
	if err != nil {
		return 0, database.WrapError("insert appearance", err)
	}
	id, err := s.insertReturningID(ctx, &s.guards.Appearances, "appearances", `
		INSERT INTO appearances (person, photo, is_reference, box_top, box_left, box_bottom, box_right, face_encoding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Person, a.Photo, a.Reference, a.Top, a.Left, a.Bottom, a.Right, emb)
	return id, database.WrapError("insert appearance", err)
}

// KnownFaces returns the embeddings of reference appearances in id order.
func (s *Store) KnownFaces(ctx context.Context) ([]database.KnownFace, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT person, face_encoding FROM appearances WHERE is_reference = ? ORDER BY id"), true)
	if err != nil {
		return nil, database.WrapError("fetch known faces", err)
	}
	defer rows.Close()

	var known []database.KnownFace
	for rows.Next() {
		var k database.KnownFace
		emb := s.dialect.NewEmbeddingScanner()
		if err := rows.Scan(&k.Person, emb); err != nil {
			return nil, database.WrapError("fetch known faces", err)
		}
		if k.Embedding, err = emb.Embedding(); err != nil {
			return nil, database.WrapError("fetch known faces", err)
		}
		known = append(known, k)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError("fetch known faces", err)
	}
	return known, nil
}

// AppearancesForPhoto returns the appearances in a photo in id order.
func (s *Store) AppearancesForPhoto(ctx context.Context, photo int64) ([]database.Appearance, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		"SELECT "+appearanceColumns+" FROM appearances WHERE photo = ? ORDER BY id"), photo)
	if err != nil {
		return nil, database.WrapError("appearances for photo", err)
	}
	defer rows.Close()

	var out []database.Appearance
	for rows.Next() {
		a, err := s.scanAppearance(rows)
		if err != nil {
			return nil, database.WrapError("appearances for photo", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapError("appearances for photo", err)
	}
	return out, nil
}

// GetAppearance returns the appearance, or nil if it does not exist.
func (s *Store) GetAppearance(ctx context.Context, id int64) (*database.Appearance, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+appearanceColumns+" FROM appearances WHERE id = ?"), id)
	a, err := s.scanAppearance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapError("get appearance", err)
	}
	return a, nil
}

// ---------------------------------------------------------------- avatars

// InsertAvatar records the avatar of a person and returns its id.
func (s *Store) InsertAvatar(ctx context.Context, person, appearance int64) (int64, error) {
	id, err := s.insertReturningID(ctx, &s.guards.Avatars, "avatars",
		"INSERT INTO avatars (person, appearance) VALUES (?, ?)", person, appearance)
	return id, database.WrapError("insert avatar", err)
}

func (s *Store) avatarSource(ctx context.Context, op, query string, arg int64) (*database.AvatarSource, error) {
	var src database.AvatarSource
	err := s.db.QueryRowContext(ctx, s.rebind(query), arg).
		Scan(&src.FileName, &src.Top, &src.Left, &src.Bottom, &src.Right)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.WrapError(op, err)
	}
	return &src, nil
}

// AvatarForPerson returns the photo file and face box of the person's avatar.
func (s *Store) AvatarForPerson(ctx context.Context, person int64) (*database.AvatarSource, error) {
	return s.avatarSource(ctx, "avatar for person", `
		SELECT p.file_name, a.box_top, a.box_left, a.box_bottom, a.box_right
		FROM avatars v
		JOIN appearances a ON a.id = v.appearance
		JOIN photos p ON p.id = a.photo
		WHERE v.person = ?
		ORDER BY v.id
		LIMIT 1`, person)
}

// AvatarSourceForAppearance returns the photo file and face box of an appearance.
func (s *Store) AvatarSourceForAppearance(ctx context.Context, appearance int64) (*database.AvatarSource, error) {
	return s.avatarSource(ctx, "avatar for appearance", `
		SELECT p.file_name, a.box_top, a.box_left, a.box_bottom, a.box_right
		FROM appearances a
		JOIN photos p ON p.id = a.photo
		WHERE a.id = ?`, appearance)
}
