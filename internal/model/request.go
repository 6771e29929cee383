package model

type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	CaptchaKey string `json:"captchaKey"`
	Captcha    string `json:"captcha"`
	RememberMe bool   `json:"rememberMe"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}
