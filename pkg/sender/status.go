package sender

type Status struct {
	Name        string `json:"name"`
	Connections int    `json:"connections"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FrameRate   string `json:"frame_rate"`
	Timecode    string `json:"timecode"`
	Alpha       bool   `json:"alpha"`
	Audio       bool   `json:"audio"`
	PTZ         bool   `json:"ptz"`
}

func (s *Sender) Status() Status {
	s.renderMu.Lock()
	st := Status{
		Name:      s.opts.Name,
		Width:     s.frameSize.X,
		Height:    s.frameSize.Y,
		FrameRate: s.frameRate.String(),
		Timecode:  s.lastRenderTime.String(),
		Alpha:     s.ringAlpha,
		PTZ:       s.ptz,
	}
	s.renderMu.Unlock()

	st.Connections = s.GetNumberOfConnections()
	st.Audio = s.AudioEnabled()
	return st
}
