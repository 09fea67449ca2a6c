package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
)

// Date is a calendar day serialized as "YYYY-MM-DD".
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(constants.DayLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(constants.DayLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// UnixTime is a datetime serialized as whole unix seconds.
type UnixTime struct {
	time.Time
}

func (t UnixTime) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, t.Unix(), 10), nil
}

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	secs, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unix timestamp %s: %w", data, err)
	}
	t.Time = time.Unix(secs, 0).UTC()
	return nil
}

// PersonResponse is the API representation of a person.
type PersonResponse struct {
	FirstName   string  `json:"first_name"`
	MiddleNames *string `json:"middle_names,omitempty"`
	Surname     string  `json:"surname"`
	DisplayName *string `json:"display_name,omitempty"`
	DOB         *Date   `json:"dob,omitempty"`
}

func personToResponse(p *database.Person) PersonResponse {
	resp := PersonResponse{
		FirstName:   p.FirstName,
		MiddleNames: p.MiddleNames,
		Surname:     p.Surname,
		DisplayName: p.DisplayName,
	}
	if p.DOB != nil {
		resp.DOB = &Date{Time: *p.DOB}
	}
	return resp
}

func (p *PersonResponse) toPerson(id int64) database.Person {
	person := database.Person{
		ID:          id,
		FirstName:   p.FirstName,
		MiddleNames: p.MiddleNames,
		Surname:     p.Surname,
		DisplayName: p.DisplayName,
	}
	if p.DOB != nil {
		dob := p.DOB.Time
		person.DOB = &dob
	}
	return person
}

// PhotoResponse is the API representation of a photo.
type PhotoResponse struct {
	FileName         string    `json:"file_name"`
	ImageWidth       int       `json:"image_width"`
	ImageHeight      int       `json:"image_height"`
	ThumbWidth       int       `json:"thumb_width"`
	ThumbHeight      int       `json:"thumb_height"`
	OriginalDatetime *UnixTime `json:"original_datetime,omitempty"`
	UploadDatetime   UnixTime  `json:"upload_datetime"`
}

func photoToResponse(p *database.Photo) PhotoResponse {
	resp := PhotoResponse{
		FileName:       p.FileName,
		ImageWidth:     p.ImageWidth,
		ImageHeight:    p.ImageHeight,
		ThumbWidth:     p.ThumbWidth,
		ThumbHeight:    p.ThumbHeight,
		UploadDatetime: UnixTime{Time: p.UploadDatetime},
	}
	if p.OriginalDatetime != nil {
		resp.OriginalDatetime = &UnixTime{Time: *p.OriginalDatetime}
	}
	return resp
}

// AppearanceResponse is the API representation of a face appearance.
type AppearanceResponse struct {
	Person    int64 `json:"person"`
	Photo     int64 `json:"photo"`
	Reference bool  `json:"reference"`
	Top       int   `json:"top"`
	Left      int   `json:"left"`
	Bottom    int   `json:"bottom"`
	Right     int   `json:"right"`
}

func appearanceToResponse(a *database.Appearance) AppearanceResponse {
	return AppearanceResponse{
		Person:    a.Person,
		Photo:     a.Photo,
		Reference: a.Reference,
		Top:       a.Top,
		Left:      a.Left,
		Bottom:    a.Bottom,
		Right:     a.Right,
	}
}

// DayCountResponse is a [date, count] pair.
type DayCountResponse struct {
	Date  Date
	Count int
}

func (d DayCountResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{d.Date, d.Count})
}

// idEntry is one member of an IDMap.
type idEntry[T any] struct {
	ID    int64
	Value T
}

// IDMap is a JSON object keyed by record id that keeps insertion order.
// encoding/json sorts map keys as strings, which would put "10" before "2".
type IDMap[T any] struct {
	entries []idEntry[T]
}

// Add appends a record.
func (m *IDMap[T]) Add(id int64, value T) {
	m.entries = append(m.entries, idEntry[T]{ID: id, Value: value})
}

// Len returns the number of records.
func (m *IDMap[T]) Len() int {
	return len(m.entries)
}

func (m IDMap[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.FormatInt(e.ID, 10)))
		buf.WriteByte(':')
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding record %d: %w", e.ID, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *IDMap[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	m.entries = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid record id %q: %w", key, err)
		}
		var value T
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding record %d: %w", id, err)
		}
		m.Add(id, value)
	}
	_, err = dec.Token()
	return err
}

// IDs returns the record ids in order.
func (m *IDMap[T]) IDs() []int64 {
	ids := make([]int64, len(m.entries))
	for i, e := range m.entries {
		ids[i] = e.ID
	}
	return ids
}

// Get returns the record with the id.
func (m *IDMap[T]) Get(id int64) (T, bool) {
	for _, e := range m.entries {
		if e.ID == id {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}
