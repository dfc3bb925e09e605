package testdata

import "time"

//go:generate ormc generate

type User struct {
	ID        int    `db:"pk"`
	FirstName string `db:"not_null"`
	LastName  string
	Email     string `db:"unique"`
	Score     float64
	IsActive  bool
	Avatar    []byte
	age       int // unexported
}

type Order struct {
	ID     string `db:"pk"`
	UserID int    `db:"ref=users:id"`
	Total  float64
}

type BadTime struct {
	CreatedAt time.Time
}

type BadAutoInc struct {
	ID string `db:"autoincrement"`
}

type Unsupp struct {
	Ch chan int
}

type MultiA struct {
	ID    int64
	Label string
}

func (m *MultiA) TableName() string { return "multi_a" }

type MultiB struct {
	ID    int64
	Value string
}

type PointerReceiver struct {
	ID   int64
	Note string
}

func (p *PointerReceiver) TableName() string { return "ptr_table" }

type ModelWithIgnored struct {
	ID      int64
	Name    string
	Score   float64
	Tags    []string `db:"-"`
	Friends []User   `db:"-"`
}

type MockParent struct {
	ID   int64
	Name string
	Kids []MockChild
}

type MockChild struct {
	ID           int64
	MockParentID int64 `db:"ref=mock_parents"`
	Name         string
}
