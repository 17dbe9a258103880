// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package xarsign

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	. "github.com/luci/luci-go/common/testing/assertions"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/igankevich/zar/xarhash"
)

func selfSignedCert(t *testing.T, key *rsa.PrivateKey) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "xarsign test"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	So(err, ShouldBeNil)
	cert, err := x509.ParseCertificate(der)
	So(err, ShouldBeNil)
	return cert
}

func TestSigner(t *testing.T) {
	t.Parallel()

	Convey("Signer", t, func() {
		key, err := rsa.GenerateKey(rand.Reader, 1024)
		So(err, ShouldBeNil)
		cert := selfSignedCert(t, key)

		Convey("NewSigner rejects an unsupported hash algorithm", func() {
			_, err := NewSigner(key, []*x509.Certificate{cert}, xarhash.MD5)
			So(err, ShouldErrLike, "sha1 or sha256")
		})

		Convey("NewSigner rejects an empty certificate chain", func() {
			_, err := NewSigner(key, nil, xarhash.SHA256)
			So(err, ShouldErrLike, "non-empty certificate chain")
		})

		for _, alg := range []xarhash.Algorithm{xarhash.SHA1, xarhash.SHA256} {
			Convey("Sign/Verify round-trips for "+alg.String(), func() {
				signer, err := NewSigner(key, []*x509.Certificate{cert}, alg)
				So(err, ShouldBeNil)
				So(signer.Algorithm(), ShouldEqual, alg)
				So(signer.Style(), ShouldEqual, "RSA")
				So(signer.Len(), ShouldEqual, key.Size())
				So(signer.CertificatesBase64DER(), ShouldHaveLength, 1)

				data := []byte("table of contents bytes")
				sig, err := signer.Sign(data)
				So(err, ShouldBeNil)

				So(Verify(&key.PublicKey, data, sig, alg), ShouldBeNil)
			})
		}

		Convey("Verify rejects a tampered payload", func() {
			signer, err := NewSigner(key, []*x509.Certificate{cert}, xarhash.SHA256)
			So(err, ShouldBeNil)
			sig, err := signer.Sign([]byte("original"))
			So(err, ShouldBeNil)
			So(Verify(&key.PublicKey, []byte("tampered"), sig, xarhash.SHA256), ShouldNotBeNil)
		})

		Convey("AlgorithmForOID maps recognized certificate signature algorithms", func() {
			alg, err := AlgorithmForOID(x509.SHA256WithRSA)
			So(err, ShouldBeNil)
			So(alg, ShouldEqual, xarhash.SHA256)

			alg, err = AlgorithmForOID(x509.SHA1WithRSA)
			So(err, ShouldBeNil)
			So(alg, ShouldEqual, xarhash.SHA1)

			_, err = AlgorithmForOID(x509.ECDSAWithSHA256)
			So(err, ShouldErrLike, "unsupported certificate signature algorithm")
		})
	})
}
