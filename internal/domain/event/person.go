package event

import "strings"

// Person は登録を申し込む人を表す値オブジェクト
// 永続化はされず、登録の入力としてのみ使われる
type Person struct {
	email string
	name  string
}

// NewPerson は Person を作成する
func NewPerson(email, name string) (Person, error) {
	if strings.TrimSpace(email) == "" {
		return Person{}, ErrEmailRequired
	}
	if strings.TrimSpace(name) == "" {
		return Person{}, ErrPersonNameRequired
	}
	return Person{email: email, name: name}, nil
}

func (p Person) Email() string { return p.email }

func (p Person) Name() string { return p.name }
