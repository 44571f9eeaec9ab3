package service

import "fmt"

func verificationEmailTemplate(name, verifyURL, appName string) (string, string) {
	subject := fmt.Sprintf("Verify your email address for %s", appName)
	body := fmt.Sprintf(`Hi %s,

Please verify your email address to complete your registration:
%s

If you didn't create an account with %s, you can safely ignore this email.

Best,
The %s Team`, name, verifyURL, appName, appName)

	return subject, body
}

func passwordResetEmailTemplate(name, resetURL, appName, expiresIn string) (string, string) {
	subject := fmt.Sprintf("Reset your password for %s", appName)
	body := fmt.Sprintf(`Hi %s,

You requested to reset your password. Click this link to choose a new one:
%s

This link expires in %s and can only be used once.

If you didn't request this, you can safely ignore this email. Your password won't be changed.

Best,
The %s Team`, name, resetURL, expiresIn, appName)

	return subject, body
}

func welcomeEmailTemplate(name, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your email is verified and your account is active!

If you have questions, reach out to our support team.

Best,
The %s Team`, name, appName)

	return subject, body
}
