package client

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type Note struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteUpdate is a partial update. Leave UpdatedAt nil to overwrite without
// the staleness check.
type NoteUpdate struct {
	Title     *string    `json:"title,omitempty"`
	Content   *string    `json:"content,omitempty"`
	Tags      *[]string  `json:"tags,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type Doubt struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	OwnerName   string    `json:"ownerName"`
	Question    string    `json:"question"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Answers     []Answer  `json:"answers"`
	Resolved    bool      `json:"resolved"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type DoubtUpdate struct {
	Question    *string    `json:"question,omitempty"`
	Description *string    `json:"description,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Resolved    *bool      `json:"resolved,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type DoubtFilter struct {
	Mine  bool
	Tag   string
	Query string
}

type Answer struct {
	ID         string    `json:"id"`
	Author     string    `json:"author"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	Accepted   bool      `json:"accepted"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Timetable struct {
	ID        string           `json:"id"`
	Owner     string           `json:"owner"`
	Schedule  []TimetableEntry `json:"schedule"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type TimetableEntry struct {
	ID        string `json:"id,omitempty"`
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Subject   string `json:"subject"`
	Location  string `json:"location,omitempty"`
}

type Course struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Credits     int    `json:"credits"`
	Level       string `json:"level"`
}

type Stats struct {
	Users      int `json:"users"`
	Notes      int `json:"notes"`
	Doubts     int `json:"doubts"`
	Timetables int `json:"timetables"`
}
