package randstr

import "crypto/rand"

type Generator struct {
	charset []byte
}

func New(charset []byte) *Generator {
	return &Generator{charset: charset}
}

func (g *Generator) GenerateRandomString(length int) string {
	buf := make([]byte, length)
	rand.Read(buf)

	for i := range buf {
		buf[i] = g.charset[int(buf[i])%len(g.charset)]
	}

	return string(buf)
}
