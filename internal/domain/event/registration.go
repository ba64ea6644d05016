package event

import "strings"

// maskedPrefixLength はマスクせずに残すメールアドレス先頭の文字数
const maskedPrefixLength = 3

// Registration はイベントへの登録を表す値オブジェクト
// 親の Event の外では識別子を持たない
type Registration struct {
	email string
	name  string
}

// NewRegistration は Person から登録を作成する（メールアドレスは小文字に正規化）
func NewRegistration(p Person) Registration {
	return Registration{
		email: strings.ToLower(p.Email()),
		name:  p.Name(),
	}
}

// RestoreRegistration は永続化された登録を復元する
func RestoreRegistration(email, name string) Registration {
	return Registration{email: strings.ToLower(email), name: name}
}

func (r Registration) Email() string { return r.email }

func (r Registration) Name() string { return r.name }

// Equal は正規化されたメールアドレスのみで比較する
func (r Registration) Equal(other Registration) bool {
	return r.email == other.email
}

// MaskedEmail は @ より前の4文字目以降を * に置き換えたメールアドレスを返す
// 例: john.doe@example.com -> joh*****@example.com
func (r Registration) MaskedEmail() string {
	return MaskEmail(r.email)
}

// MaskEmail はメールアドレスのローカル部をマスクする
func MaskEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	runes := []rune(local)
	if len(runes) <= maskedPrefixLength {
		return email
	}
	var b strings.Builder
	b.WriteString(string(runes[:maskedPrefixLength]))
	b.WriteString(strings.Repeat("*", len(runes)-maskedPrefixLength))
	if found {
		b.WriteByte('@')
		b.WriteString(domain)
	}
	return b.String()
}
