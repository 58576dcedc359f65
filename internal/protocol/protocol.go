package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedResponse marks inbound payloads that do not match Response.
var ErrMalformedResponse = errors.New("protocol: malformed response")

// Request asks the data source for the next chunk of points.
type Request struct {
	Name             string `json:"name"`
	ChunkSize        int    `json:"chunkSize"`
	InitialChunkSize int    `json:"initialChunkSize"`
	Hash             string `json:"hash"`
}

// Point is a single x/y sample.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Response carries the points produced for the request identified by Hash.
type Response struct {
	Data []Point `json:"data"`
	Hash string  `json:"hash"`
}

type wireResponse struct {
	Data *[]wirePoint `json:"data"`
	Hash string       `json:"hash"`
}

type wirePoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// DecodeResponse parses an inbound frame. Only the shape is checked: data must
// be an array and every point must carry numeric x and y.
func DecodeResponse(frame []byte) (Response, error) {
	var wire wireResponse
	dec := json.NewDecoder(bytes.NewReader(frame))
	if err := dec.Decode(&wire); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if wire.Data == nil {
		return Response{}, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}

	points := make([]Point, 0, len(*wire.Data))
	for i, p := range *wire.Data {
		if p.X == nil || p.Y == nil {
			return Response{}, fmt.Errorf("%w: point %d missing coordinate", ErrMalformedResponse, i)
		}
		points = append(points, Point{X: *p.X, Y: *p.Y})
	}
	return Response{Data: points, Hash: wire.Hash}, nil
}
