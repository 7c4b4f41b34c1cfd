package login

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/agrigrow/agrichat/cmd/agrichat/internal"
	"github.com/agrigrow/agrichat/pkg/api"
	"github.com/agrigrow/agrichat/pkg/auth"
)

func loginCmd(email, password string) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if email == "" {
		email, err = auth.PromptLine("Email", os.Stdin)
		if err != nil {
			return err
		}
	}

	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.APITimeout())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout())
	defer cancel()

	token, user, err := client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	store := auth.NewStore(cfg.StateDir())
	if err := store.Save(auth.Credential{Token: token, User: user}); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	name := user.FullName
	if name == "" {
		name = user.Email
	}
	fmt.Printf("%s Logged in as %s\n", internal.Logo, name)
	return nil
}

func registerCmd(fullName, email, password string) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if fullName == "" {
		fullName, err = auth.PromptLine("Full name", os.Stdin)
		if err != nil {
			return err
		}
	}
	if email == "" {
		email, err = auth.PromptLine("Email", os.Stdin)
		if err != nil {
			return err
		}
	}
	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.APITimeout())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout())
	defer cancel()

	user, err := client.Register(ctx, api.RegisterRequest{
		FullName: fullName,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	name := user.FullName
	if name == "" {
		name = email
	}
	fmt.Printf("%s Account created for %s; run: agrichat login\n", internal.Logo, name)
	return nil
}

func profileCmd(fullName, image string, nameSet, imageSet bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	store := auth.NewStore(cfg.StateDir())
	cred, err := store.Load()
	if errors.Is(err, auth.ErrNotLoggedIn) {
		return errors.New("not logged in; run: agrichat login")
	}
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.APITimeout())
	client.SetToken(cred.Token)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout())
	defer cancel()

	if !nameSet && !imageSet {
		user, err := client.Me(ctx)
		if errors.Is(err, api.ErrUnauthorized) {
			return errors.New("session expired; run: agrichat login")
		}
		if err != nil {
			user = cred.User
		}
		printProfile(user)
		return nil
	}

	updated := cred.User
	if nameSet {
		updated.FullName = fullName
	}
	if imageSet {
		updated.ProfileImage = image
	}

	user, err := client.UpdateProfile(ctx, updated)
	if errors.Is(err, api.ErrUnauthorized) {
		return errors.New("session expired; run: agrichat login")
	}
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}

	// Keep the cached profile in step with the backend.
	cred.User = user
	if err := store.Save(*cred); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}

	printProfile(user)
	return nil
}

func printProfile(user api.User) {
	fmt.Printf("%s <%s>\n", user.FullName, user.Email)
	if user.ProfileImage != "" {
		fmt.Printf("image: %s\n", user.ProfileImage)
	}
	if user.IsAdmin {
		fmt.Println("role: admin")
	}
}

func promptPassword() (string, error) {
	rl, err := readline.New("")
	if err != nil {
		return "", err
	}
	defer rl.Close()

	secret, err := rl.ReadPassword("Password: ")
	if err != nil {
		return "", err
	}
	password := strings.TrimSpace(string(secret))
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}

func logoutCmd() error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if err := auth.NewStore(cfg.StateDir()).Clear(); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	fmt.Println("Logged out")
	return nil
}

func whoamiCmd() error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	cred, err := auth.NewStore(cfg.StateDir()).Load()
	if errors.Is(err, auth.ErrNotLoggedIn) {
		return errors.New("not logged in; run: agrichat login")
	}
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.APITimeout())
	client.SetToken(cred.Token)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout())
	defer cancel()

	user, err := client.Me(ctx)
	if errors.Is(err, api.ErrUnauthorized) {
		return errors.New("session expired; run: agrichat login")
	}
	if err != nil {
		// Fall back to the cached profile when the backend is unreachable.
		user = cred.User
	}

	fmt.Printf("%s <%s>\n", user.FullName, user.Email)
	if user.IsAdmin {
		fmt.Println("role: admin")
	}
	return nil
}
