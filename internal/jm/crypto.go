package jm

import (
	"crypto/aes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	appVersion       = "2.0.16"
	appTokenSecret   = "18comicAPP"
	appTokenSecret2  = "18comicAPPContent"
	appDataSecret    = "185Hcomic3PAPP7R"
	domainListSecret = "diosfjckwpqpdfjkvnqQjsik"

	apiUserAgent = "Mozilla/5.0 (Linux; Android 9; V1938CT Build/PQ3A.190705.11211812; wv) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/91.0.4472.114 Safari/537.36"
)

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func setAPIHeaders(req *http.Request, ts string) {
	req.Header.Set("user-agent", apiUserAgent)
	req.Header.Set("token", md5hex(ts+appTokenSecret))
	req.Header.Set("tokenparam", ts+","+appVersion)
}

// setContentHeaders signs a request for the HTML chapter viewer, which
// uses a different token secret than the JSON API.
func setContentHeaders(req *http.Request, ts string) {
	req.Header.Set("user-agent", apiUserAgent)
	req.Header.Set("token", md5hex(ts+appTokenSecret2))
	req.Header.Set("tokenparam", ts+","+appVersion)
}

func setImageHeaders(req *http.Request, refererDomain string) {
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("X-Requested-With", "com.JMComic3.app")
	req.Header.Set("Referer", "https://"+refererDomain)
	req.Header.Set("user-agent", apiUserAgent)
}

// decodeAPIResponse unwraps the {code, data} envelope and decrypts the
// AES-ECB + PKCS7 payload keyed by the request timestamp.
func decodeAPIResponse(raw []byte, ts string) (map[string]any, error) {
	var outer struct {
		Code     json.Number `json:"code"`
		Data     string      `json:"data"`
		ErrorMsg string      `json:"errorMsg"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, fmt.Errorf("jm api: bad envelope: %w", err)
	}
	code, _ := outer.Code.Int64()
	if code != 200 {
		return nil, &apiError{Code: code, Msg: outer.ErrorMsg}
	}
	if outer.Data == "" {
		return nil, errors.New("jm api: empty data")
	}
	decoded, err := decryptData(outer.Data, ts, appDataSecret)
	if err != nil {
		return nil, err
	}
	var model map[string]any
	if err := json.Unmarshal([]byte(decoded), &model); err != nil {
		return nil, fmt.Errorf("jm api: bad payload: %w", err)
	}
	return model, nil
}

func decryptData(data, ts, secret string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", errors.New("jm api: invalid cipher length")
	}
	block, err := aes.NewCipher([]byte(md5hex(ts + secret)))
	if err != nil {
		return "", err
	}
	out := make([]byte, len(raw))
	for bs := 0; bs < len(raw); bs += aes.BlockSize {
		block.Decrypt(out[bs:bs+aes.BlockSize], raw[bs:bs+aes.BlockSize])
	}
	pad := int(out[len(out)-1])
	if pad <= 0 || pad > aes.BlockSize || pad > len(out) {
		return "", errors.New("jm api: invalid padding")
	}
	for i := len(out) - pad; i < len(out); i++ {
		if int(out[i]) != pad {
			return "", errors.New("jm api: invalid pkcs7 padding")
		}
	}
	return string(out[:len(out)-pad]), nil
}
