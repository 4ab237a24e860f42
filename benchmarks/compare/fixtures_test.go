package compare_test

import (
	"bytes"
	"strconv"
)

const (
	cmpFields = 200
	cmpRows   = 20
)

// generateFormConfig renders a config with n text controls chained by
// disabled conditions, each carrying validators, followed by a select and an
// array of rows.
func generateFormConfig(n int) []byte {
	var buf bytes.Buffer
	buf.Grow(n * 192)
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"formControlName":"f`)
		buf.WriteString(strconv.Itoa(i))
		buf.WriteString(`","label":"Field `)
		buf.WriteString(strconv.Itoa(i))
		buf.WriteString(`","validators":[{"name":"required"},{"name":"maxLength","value":32}]`)
		if i > 0 {
			buf.WriteString(`,"conditions":{"disabled":["f`)
			buf.WriteString(strconv.Itoa(i - 1))
			buf.WriteString(`","===","off"]}`)
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`,{"formControlName":"plan","type":"select","options":{"data":[{"label":"Free","value":"free"},{"label":"Pro","value":"pro"}]}}`)
	buf.WriteString(`,{"formControlName":"rows","formArray":{"length":`)
	buf.WriteString(strconv.Itoa(cmpRows))
	buf.WriteString(`,"template":[{"formControlName":"kind"},{"formControlName":"detail","conditions":{"disabled":["kind","!==","other"]}}]}}`)
	buf.WriteByte(']')
	return buf.Bytes()
}

// signupConfig is the form behind the submission benchmarks.
const signupConfig = `[
  {"formControlName":"email","validators":[{"name":"required"},{"name":"email"}]},
  {"formControlName":"age","type":"number","validators":[{"name":"min","value":18}]},
  {"formControlName":"plan","type":"select","options":{"data":[{"label":"Free","value":"free"},{"label":"Pro","value":"pro"}]}},
  {"formControlName":"terms","type":"checkbox","validators":[{"name":"requiredTrue"}]}
]`

func signupSubmission() []byte {
	return []byte(`{"email":"a@example.com","age":30,"plan":"pro","terms":true}`)
}
