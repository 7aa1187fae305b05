package auth

import (
	"sync"

	"github.com/alexedwards/argon2id"
)

// Parâmetros atuais. Hashes gravados com outros valores são refeitos no próximo login.
var params = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

var (
	missingOnce sync.Once
	missingHash string
)

// Hash gera o hash argon2id no formato PHC ($argon2id$v=19$m=...,t=...,p=...$salt$key).
func Hash(password string) (string, error) {
	return argon2id.CreateHash(password, params)
}

// Verify compara a senha usando os parâmetros embutidos no hash.
func Verify(password, encodedHash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encodedHash)
}

// NeedsRehash informa se o hash foi gerado com parâmetros diferentes dos atuais.
// Hash ilegível também conta como desatualizado.
func NeedsRehash(encodedHash string) bool {
	p, _, _, err := argon2id.DecodeHash(encodedHash)
	if err != nil {
		return true
	}
	return p.Memory != params.Memory ||
		p.Iterations != params.Iterations ||
		p.Parallelism != params.Parallelism ||
		p.KeyLength != params.KeyLength
}

// VerifyMissing gasta o mesmo tempo de uma verificação real quando a conta não existe.
func VerifyMissing(password string) bool {
	missingOnce.Do(func() {
		missingHash, _ = Hash("monitora-saude-inexistente")
	})
	if missingHash != "" {
		_, _ = Verify(password, missingHash)
	}
	return false
}
