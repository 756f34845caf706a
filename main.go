package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"portaal/core"
	"portaal/handlers/api/chat"
	exporthandler "portaal/handlers/api/export"
	"portaal/handlers/api/filters"
	"portaal/handlers/api/projects"
	"portaal/handlers/api/templates"
	"portaal/handlers/api/uploads"
	"portaal/handlers/auth"
	authMiddleware "portaal/middleware"
	"portaal/stores"
)

func setupRouter(store stores.Store) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Token", "session", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projects.HandleListProjects(store))
				r.Post("/", projects.HandleCreateProject(store))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", projects.HandleGetProject(store))
					r.Put("/", projects.HandleSaveProject(store))
					r.Patch("/", projects.HandleRenameProject(store))
					r.Delete("/", projects.HandleDeleteProject(store))
				})
			})

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", templates.HandleListTemplates(store))
				r.Get("/browse", templates.HandleBrowseTemplates(store))
				r.Group(func(r chi.Router) {
					r.Use(authMiddleware.RequireDesigner)
					r.Post("/", templates.HandleCreateTemplate(store))
					r.Put("/{id}", templates.HandleSaveTemplate(store))
					r.Patch("/{id}", templates.HandleRenameTemplate(store))
					r.Delete("/{id}", templates.HandleDeleteTemplate(store))
				})
				r.Get("/{id}", templates.HandleGetTemplate(store))
			})

			r.Get("/filters", filters.HandleListFilters(store))

			r.Route("/uploads", func(r chi.Router) {
				r.Post("/", uploads.HandleUpload(store))
				r.Get("/{key}", uploads.HandleGetUpload(store))
				r.Delete("/{key}", uploads.HandleDeleteUpload(store))
			})

			r.Post("/export", exporthandler.HandleExport(store))

			r.Get("/chat/{roomID}", chat.HandleListMessages(store))
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	return r
}

// setupSocketIO wires the per-project chat rooms. A client joins with
// its project id and JWT; messages are persisted before broadcast so
// the other side sees them in history even when offline.
func setupSocketIO(store stores.Store) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	ioo := socketio.NewServer(nil, opts)

	var mu sync.Mutex
	users := map[socketio.SocketId]*auth.AppClaims{}

	ioo.On("connection", func(clients ...any) {
		socket := clients[0].(*socketio.Socket)
		me := socket.Id()

		socket.On("join-room", func(datas ...any) {
			if len(datas) < 2 {
				return
			}
			roomID, _ := datas[0].(string)
			token, _ := datas[1].(string)

			claims, err := auth.ParseJWT(token)
			if err != nil {
				logrus.WithField("socket", me).Warn("Rejected unauthenticated room join")
				socket.Disconnect(true)
				return
			}

			mu.Lock()
			users[me] = claims
			mu.Unlock()

			room := socketio.Room(roomID)
			socket.Join(room)
			logrus.WithFields(logrus.Fields{
				"socket": me,
				"room":   roomID,
				"login":  claims.Login,
			}).Debug("Socket joined room")

			ioo.In(room).FetchSockets()(func(usersInRoom []*socketio.RemoteSocket, _ error) {
				roomUsers := []socketio.SocketId{}
				for _, user := range usersInRoom {
					roomUsers = append(roomUsers, user.Id())
				}
				ioo.In(room).Emit("room-user-change", roomUsers)
			})
		})

		socket.On("chat-message", func(datas ...any) {
			if len(datas) < 2 {
				return
			}
			roomID, _ := datas[0].(string)
			body, _ := datas[1].(string)
			if roomID == "" || body == "" {
				return
			}

			mu.Lock()
			claims := users[me]
			mu.Unlock()
			if claims == nil {
				return
			}

			message := &core.Message{
				ID:     uuid.NewString(),
				RoomID: roomID,
				UserID: claims.Subject,
				Login:  claims.Login,
				Body:   body,
				SentAt: time.Now(),
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.AppendMessage(ctx, message); err != nil {
				logrus.WithFields(logrus.Fields{
					"error":  err,
					"roomID": roomID,
				}).Error("Failed to persist chat message")
				return
			}

			ioo.In(socketio.Room(roomID)).Emit("chat-message", message)
		})

		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				ioo.In(currentRoom).FetchSockets()(func(usersInRoom []*socketio.RemoteSocket, _ error) {
					otherClients := []socketio.SocketId{}
					for _, userInRoom := range usersInRoom {
						if userInRoom.Id() != me {
							otherClients = append(otherClients, userInRoom.Id())
						}
					}
					if len(otherClients) > 0 {
						ioo.In(currentRoom).Emit("room-user-change", otherClients)
					}
				})
			}
		})

		socket.On("disconnect", func(datas ...any) {
			mu.Lock()
			delete(users, me)
			mu.Unlock()
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})
	return ioo
}

func waitForShutdown(ioo *socketio.Server) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	ioo.Close(nil)
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.InitAuth()
	store := stores.GetStore()

	r := setupRouter(store)

	ioo := setupSocketIO(store)
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo)
}
