// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package xartrust

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func selfSigned(t *testing.T, cn string) (*x509.Certificate, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		SignatureAlgorithm:    x509.SHA256WithRSA,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert, der
}

func TestTrust(t *testing.T) {
	Convey("Trust", t, func() {
		trusted, trustedDER := selfSigned(t, "trusted-root")
		other, _ := selfSigned(t, "other-root")

		Convey("TrustAny accepts anything", func() {
			So(TrustAny{}.Trusted(trusted), ShouldBeTrue)
			So(TrustAny{}.Trusted(other), ShouldBeTrue)
		})

		Convey("TrustList accepts only listed public keys", func() {
			v := NewTrustList(trusted)
			So(v.Trusted(trusted), ShouldBeTrue)
			So(v.Trusted(other), ShouldBeFalse)
		})

		Convey("TrustApple accepts only its configured roots", func() {
			v, err := NewTrustAppleFromDER(trustedDER)
			So(err, ShouldBeNil)
			So(v.Trusted(trusted), ShouldBeTrue)
			So(v.Trusted(other), ShouldBeFalse)
		})
	})
}
