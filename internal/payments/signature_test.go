package payments

import "testing"

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"eventType":"succeeded","purpose":"proposal"}`)

	valid := ComputeSignature(secret, body)

	if !VerifySignature(secret, body, valid) {
		t.Error("valid signature rejected")
	}
	if VerifySignature(secret, body, "") {
		t.Error("empty signature accepted")
	}
	if VerifySignature(secret, body, valid+"00") {
		t.Error("tampered signature accepted")
	}
	if VerifySignature("wrong-secret", body, valid) {
		t.Error("signature verified under the wrong secret")
	}
	if VerifySignature(secret, append([]byte(nil), append(body, '!')...), valid) {
		t.Error("signature verified for a different body")
	}
}
