package reader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// decodeFunc 把一个文件解码成若干 JSON 值（保持文件内顺序）。
// 语法错误是整个文件的错误；值本身不是对象的由校验阶段按记录处理。
type decodeFunc func(r io.Reader) ([]interface{}, error)

// 文件扩展名 → 解码函数
var formatRegistry = make(map[string]decodeFunc)

func registerFormat(ext string, fn decodeFunc) {
	if fn == nil {
		panic(fmt.Sprintf("格式 %s 的解码函数不能为nil", ext))
	}
	formatRegistry[strings.ToLower(ext)] = fn
}

func lookupFormat(ext string) (decodeFunc, bool) {
	fn, ok := formatRegistry[strings.ToLower(ext)]
	return fn, ok
}

// SupportedExtensions 返回可识别的扩展名（已排序）
func SupportedExtensions() []string {
	exts := make([]string, 0, len(formatRegistry))
	for ext := range formatRegistry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func init() {
	registerFormat(".json", decodeJSONDocument)
	registerFormat(".ndjson", decodeJSONLines)
	registerFormat(".jsonl", decodeJSONLines)
}

// decodeJSONDocument 支持三种写法：顶层数组、单个对象、首尾相接的多个对象
func decodeJSONDocument(r io.Reader) ([]interface{}, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	if first != '[' {
		return decodeObjectStream(dec)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var docs []interface{}
	for i := 0; dec.More(); i++ {
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("数组第 %d 个元素: %w", i, err)
		}
		docs = append(docs, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("数组之后存在多余内容")
	}
	return docs, nil
}

func decodeObjectStream(dec *json.Decoder) ([]interface{}, error) {
	var docs []interface{}
	for i := 0; ; i++ {
		var v interface{}
		err := dec.Decode(&v)
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("第 %d 个对象: %w", i, err)
		}
		docs = append(docs, v)
	}
}

// decodeJSONLines 每行一个值，空行忽略
func decodeJSONLines(r io.Reader) ([]interface{}, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var docs []interface{}
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("第 %d 行存在多余内容", line)
		}
		docs = append(docs, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case 0xEF:
			// UTF-8 BOM
			if rest, err := br.Peek(2); err == nil && rest[0] == 0xBB && rest[1] == 0xBF {
				_, _ = br.Discard(2)
				continue
			}
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
