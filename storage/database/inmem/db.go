package inmemdb

import (
	"sync"

	"github.com/quizmaster/backend/core/quiz"
)

// DB is an in-memory stand-in for the postgres read model.
// It backs tests and the `inmem` database engine.
type DB struct {
	mutex    sync.RWMutex
	pkCount  int
	users    map[int]quiz.User
	subjects map[int]quiz.Subject
	chapters map[int]quiz.Chapter
	quizzes  map[int]quiz.Quiz
	scores   map[int]quiz.Score
	prefs    map[int]quiz.Preference // by user ID
}

func Open() *DB {
	return &DB{
		users:    make(map[int]quiz.User),
		subjects: make(map[int]quiz.Subject),
		chapters: make(map[int]quiz.Chapter),
		quizzes:  make(map[int]quiz.Quiz),
		scores:   make(map[int]quiz.Score),
		prefs:    make(map[int]quiz.Preference),
	}
}

func (db *DB) nextID(id int) int {
	if id == 0 {
		db.pkCount++
		return db.pkCount
	}
	if id > db.pkCount {
		db.pkCount = id
	}
	return id
}

func (db *DB) AddUser(usr quiz.User) quiz.User {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	usr.ID = db.nextID(usr.ID)
	if usr.Role == "" {
		usr.Role = quiz.RoleUser
	}
	db.users[usr.ID] = usr
	return usr
}

func (db *DB) AddSubject(sub quiz.Subject) quiz.Subject {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	sub.ID = db.nextID(sub.ID)
	db.subjects[sub.ID] = sub
	return sub
}

func (db *DB) AddChapter(ch quiz.Chapter) quiz.Chapter {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	ch.ID = db.nextID(ch.ID)
	db.chapters[ch.ID] = ch
	return ch
}

func (db *DB) AddQuiz(q quiz.Quiz) quiz.Quiz {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	q.ID = db.nextID(q.ID)
	db.quizzes[q.ID] = q
	return q
}

func (db *DB) AddScore(s quiz.Score) quiz.Score {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	s.ID = db.nextID(s.ID)
	db.scores[s.ID] = s
	return s
}

func (db *DB) SetPreference(pref quiz.Preference) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.prefs[pref.UserID] = pref
}
