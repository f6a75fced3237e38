package langdetect

import (
	"testing"

	"github.com/pemistahl/lingua-go"
	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	d := New()
	assert.Equal(t, "en", d.Detect("The committee published its annual report on housing costs yesterday."))
	assert.Equal(t, "es", d.Detect("El comité publicó ayer su informe anual sobre el costo de la vivienda."))
	assert.Equal(t, "de", d.Detect("Der Ausschuss hat gestern seinen Jahresbericht über die Wohnkosten veröffentlicht."))
}

func TestDetect_EmptyFallsBack(t *testing.T) {
	assert.Equal(t, Default, New().Detect("   "))
}

func TestDetect_ConfidenceFloor(t *testing.T) {
	d := &Detector{MinConfidence: 1.01}
	assert.Equal(t, Default, d.Detect("El comité publicó ayer su informe anual."))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "fr", code(lingua.French))
	assert.Equal(t, "no", code(lingua.Bokmal))
	assert.Equal(t, "zh", code(lingua.Chinese))
}
