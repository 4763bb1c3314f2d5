// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transcode

// InfoParams are inputs of NewInfo.
type InfoParams struct {
	CID        string
	Length     int
	Aspect     float64
	AudioIndex int
}

// Info is a catalog record of a transcoded origin.
type Info struct {
	CID    string   `json:"cid"`
	Audio  int      `json:"audio"`
	Srcset []string `json:"srcset"`
	Aspect float64  `json:"aspect"`
}

// NewInfo creates Info with Srcset of p.Length empty slots, negative Length is treated
// as 0.
func NewInfo(p InfoParams) Info {
	return Info{
		CID:    p.CID,
		Audio:  p.AudioIndex,
		Srcset: make([]string, max(p.Length, 0)),
		Aspect: p.Aspect,
	}
}

// Info returns catalog record for o with Srcset filled with frame paths relative to
// origin root.
func (o Output) Info() Info {
	var aspect float64
	if o.Metadata.Height > 0 {
		aspect = float64(o.Metadata.Width) / float64(o.Metadata.Height)
	}
	info := NewInfo(InfoParams{CID: o.OriginID, Length: o.FrameCount, Aspect: aspect})
	for i := range info.Srcset {
		info.Srcset[i] = FramePath(i + 1)
	}
	return info
}
