package challenge

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"

	qrcode "github.com/skip2/go-qrcode"
)

// Challenge is one issued human-verification puzzle: the image shown to the
// caller and the answer kept server-side.
type Challenge struct {
	Answer string
	Image  string // base64-encoded PNG
}

// Generator produces challenges. The rendering is deliberately opaque to the
// rest of the pipeline so deployments can swap in a real captcha renderer.
type Generator interface {
	Generate() (*Challenge, error)
}

// answer alphabet omits easily-confused characters (0/O, 1/I/l)
const answerAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const answerLength = 6

// CodeGenerator renders the challenge answer into a PNG the caller must read
// back. The stand-in renderer encodes the answer as a QR image; production
// deployments replace it with a distorted-text renderer behind the same
// interface.
type CodeGenerator struct {
	imageSize int
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{imageSize: 256}
}

func (g *CodeGenerator) Generate() (*Challenge, error) {
	answer, err := randomAnswer()
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(answer, qrcode.Medium, g.imageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render challenge image: %w", err)
	}

	return &Challenge{
		Answer: answer,
		Image:  base64.StdEncoding.EncodeToString(png),
	}, nil
}

func randomAnswer() (string, error) {
	buf := make([]byte, answerLength)
	max := big.NewInt(int64(len(answerAlphabet)))

	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate challenge answer: %w", err)
		}
		buf[i] = answerAlphabet[n.Int64()]
	}

	return string(buf), nil
}
